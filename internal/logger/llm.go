package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	llmMu  sync.Mutex
	llmLog *log.Logger
)

// SetLLMWriter 指定投委会模型请求/响应的独立落盘位置；nil 表示关闭。
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

// LogLLMExchange 记录一次完整的模型往返，便于事后复盘建议来源。
func LogLLMExchange(instrument, model, prompt, raw string) {
	llmMu.Lock()
	l := llmLog
	llmMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM][")
	b.WriteString(instrument)
	b.WriteString("][")
	b.WriteString(model)
	b.WriteString("]\n--- PROMPT ---\n")
	b.WriteString(strings.TrimRight(prompt, "\n"))
	b.WriteString("\n--- RAW ---\n")
	b.WriteString(strings.TrimRight(raw, "\n"))
	b.WriteString("\n=====\n")
	l.Print(b.String())
}
