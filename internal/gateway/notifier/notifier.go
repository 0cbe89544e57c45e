// Package notifier 负责把决策摘要推送到外部渠道。
package notifier

import "context"

// TextNotifier 是文本推送通道。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop 丢弃所有消息，用于未配置通知渠道时。
type Nop struct{}

func (Nop) SendText(context.Context, string) error { return nil }
