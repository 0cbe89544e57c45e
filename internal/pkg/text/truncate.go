// Package text 提供不切断多字节字符的截断工具。
package text

// Runes 保留前 max 个字符，不追加省略号。max<=0 时原样返回。
func Runes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Truncate 按字节上限截断并追加 "..."，截断点落在字符边界上。
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := 0
	for i := range s {
		if i > limit {
			break
		}
		cut = i
	}
	return s[:cut] + "..."
}
