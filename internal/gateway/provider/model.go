package provider

import "context"

// ChatPayload 是一次对话补全请求。
type ChatPayload struct {
	System      string
	User        string
	ExpectJSON  bool
	Temperature float64
	MaxTokens   int
}

// ChatModel 抽象 OpenAI 兼容的对话模型，便于在测试中替换。
type ChatModel interface {
	ID() string
	Call(ctx context.Context, payload ChatPayload) (string, error)
}
