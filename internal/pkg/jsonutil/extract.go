package jsonutil

import (
	"regexp"
	"strings"
)

var (
	thinkBlock     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceOpen      = regexp.MustCompile("```(?:json|JSON)?\\s*")
	trailingCommas = regexp.MustCompile(`,\s*([}\]])`)
)

// CleanObject 从模型回复中提取第一个 JSON 对象：
// 去掉推理块与代码围栏，截取花括号区间，并删除尾随逗号。
func CleanObject(raw string) (string, bool) {
	text := thinkBlock.ReplaceAllString(raw, "")
	text = fenceOpen.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	obj, ok := extractJSONObject(text)
	if !ok {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end <= start {
			return "", false
		}
		obj = text[start : end+1]
	}
	return trailingCommas.ReplaceAllString(obj, "$1"), true
}

// extractJSONObject 按括号深度匹配第一个完整对象，忽略字符串内的括号。
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
