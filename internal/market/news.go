package market

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"magpie/internal/logger"

	"github.com/tidwall/gjson"
)

const (
	// DefaultNewsBudget 是拼接后新闻上下文的字符上限。
	DefaultNewsBudget = 35000
	newsDigestRunes   = 300
	newsSortKeyRunes  = 17
)

// NewsCache 读取采集任务写入的 `<dir>/news_<日期>.jsonl`，每行一条新闻。
type NewsCache struct {
	Dir      string
	Location *time.Location
	// Budget 为 0 时使用 DefaultNewsBudget。
	Budget int
}

func NewNewsCache(dir string, loc *time.Location) *NewsCache {
	if loc == nil {
		loc = ChinaStandardTime
	}
	return &NewsCache{Dir: dir, Location: loc, Budget: DefaultNewsBudget}
}

// Path 返回指定交易日的缓存文件路径。
func (n *NewsCache) Path(day time.Time) string {
	return filepath.Join(n.Dir, "news_"+day.In(n.Location).Format("2006-01-02")+".jsonl")
}

// Context 返回当日新闻摘要：按标题去重、按时间倒序、按字符预算截断。
// 文件不存在时返回空串；无法解析的行被跳过。
func (n *NewsCache) Context(ctx context.Context, day time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(n.Dir) == "" {
		return "", nil
	}
	path := n.Path(day)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debugf("[market] 新闻缓存缺失: %s", path)
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	var items []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if item, ok := newsEntry(sc.Text()); ok {
			items = append(items, item)
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	budget := n.Budget
	if budget <= 0 {
		budget = DefaultNewsBudget
	}
	out := joinNews(dedupNews(items), budget)
	logger.Infof("[market] 新闻缓存 %s: %d 条，上下文 %d 字", filepath.Base(path), len(items), len([]rune(out)))
	return out, nil
}

// newsEntry 把一行 JSON 格式化为 "[MM-DD HH:MM] [EM] 标题" 加可选摘要。
func newsEntry(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || !gjson.Valid(line) {
		return "", false
	}
	doc := gjson.Parse(line)
	title := strings.TrimSpace(doc.Get("title").String())
	if len([]rune(title)) < 2 {
		return "", false
	}
	tag := "[Local]"
	switch doc.Get("source").String() {
	case "EastMoney":
		tag = "[EM]"
	case "CLS":
		tag = "[CLS]"
	}
	content := doc.Get("content").String()
	if content == "" {
		content = doc.Get("digest").String()
	}
	entry := fmt.Sprintf("[%s] %s %s", clipNewsTime(doc.Get("time").String()), tag, title)
	if r := []rune(content); len(r) > 10 {
		if len(r) > newsDigestRunes {
			r = r[:newsDigestRunes]
		}
		entry += "\n   (摘要: " + string(r) + ")"
	}
	return entry, true
}

// clipNewsTime 把 "2006-01-02 15:04:05" 截成 "01-02 15:04"。
func clipNewsTime(raw string) string {
	r := []rune(raw)
	if len(r) >= 16 {
		return string(r[5:16])
	}
	return raw
}

func newsTitle(entry string) string {
	first, _, _ := strings.Cut(entry, "\n")
	parts := strings.SplitN(first, "] ", 3)
	return parts[len(parts)-1]
}

func dedupNews(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		title := newsTitle(item)
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return sortKey(out[i]) > sortKey(out[j]) })
	return out
}

func sortKey(entry string) string {
	r := []rune(entry)
	if len(r) > newsSortKeyRunes {
		r = r[:newsSortKeyRunes]
	}
	return string(r)
}

func joinNews(items []string, budget int) string {
	var (
		kept []string
		used int
	)
	for _, item := range items {
		size := len([]rune(item))
		if used+size >= budget {
			break
		}
		kept = append(kept, item)
		used += size + 1
	}
	return strings.Join(kept, "\n")
}
