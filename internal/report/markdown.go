package report

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	fenceRe  = regexp.MustCompile("```(?:html|markdown)?")
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	underRe  = regexp.MustCompile(`__(.*?)__`)
	bulletRe = regexp.MustCompile(`(?m)^\s*[\*\-]\s+`)
)

// CleanMarkdown 去掉模型回复里夹带的代码块标记、加粗标记与行首列表符。
func CleanMarkdown(text string) string {
	if text == "" {
		return ""
	}
	text = fenceRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = underRe.ReplaceAllString(text, "$1")
	text = bulletRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

var md = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// RenderNarrative 清洗后渲染为 HTML；原始 HTML 标签会被转义。
func RenderNarrative(text string) template.HTML {
	cleaned := CleanMarkdown(text)
	if cleaned == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(cleaned), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(cleaned))
	}
	return template.HTML(buf.String())
}
