// Package advisory 调用投委会模型，对技术面评分给出调整建议。
package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"magpie/internal/analysis/technical"
	"magpie/internal/decision"
	"magpie/internal/gateway/provider"
	"magpie/internal/logger"
	"magpie/internal/pkg/circuit"
	"magpie/internal/pkg/convert"
	"magpie/internal/pkg/jsonutil"
	"magpie/internal/pkg/retry"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// FuseThreshold 及以上的风控等级强制否决。
const FuseThreshold = 2

// 结果来源。
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
	SourceDisabled = "disabled"
)

// Request 是一次投委会评估的输入。
type Request struct {
	Code      string
	Name      string
	Strategy  string
	Reading   technical.Reading
	Valuation string
	News      string
}

// Result 是规范化后的投委会结论，所有字段都有确定值。
type Result struct {
	Adjustment int              `json:"adjustment"`
	Decision   decision.Verdict `json:"decision"`
	Bull       string           `json:"bull_view"`
	Bear       string           `json:"bear_view"`
	Conclusion string           `json:"chairman_conclusion"`
	Source     string           `json:"source"`
}

// Fallback 是模型不可用时的中性结论。
func Fallback() Result {
	return Result{Adjustment: 0, Decision: decision.VerdictHold, Bull: "Error", Bear: "Error", Conclusion: "Offline", Source: SourceFallback}
}

// Advisor 给出投委会结论；实现不得返回错误。
type Advisor interface {
	Assess(ctx context.Context, req Request) Result
}

// Disabled 在未配置模型时使用，结论为 PASS。
type Disabled struct{}

func (Disabled) Assess(context.Context, Request) Result {
	return Result{Decision: decision.VerdictPass, Conclusion: "advisory disabled", Source: SourceDisabled}
}

// Options 控制模型调用。
type Options struct {
	Temperature float64
	MaxTokens   int
	Attempts    int
	RetryDelay  time.Duration
}

// Committee 通过对话模型模拟 CGO/CRO/CIO 三方辩论。
type Committee struct {
	model   provider.ChatModel
	opts    Options
	breaker *circuit.CircuitBreaker
	schema  *jsonschema.Schema
}

func NewCommittee(model provider.ChatModel, breaker *circuit.CircuitBreaker, opts Options) (*Committee, error) {
	if model == nil {
		return nil, fmt.Errorf("advisory: model is nil")
	}
	schema, err := compileResponseSchema()
	if err != nil {
		return nil, err
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	return &Committee{model: model, opts: opts, breaker: breaker, schema: schema}, nil
}

// Assess 调用模型并规范化输出；任何失败都返回 Fallback。
func (c *Committee) Assess(ctx context.Context, req Request) Result {
	prompt, err := BuildPrompt(req)
	if err != nil {
		logger.Errorf("[advisory] %s prompt: %v", req.Name, err)
		return Fallback()
	}
	raw, err := c.call(ctx, req.Name, prompt)
	if err != nil {
		logger.Warnf("[advisory] %s 模型不可用: %v", req.Name, err)
		return Fallback()
	}
	res, err := c.parse(raw)
	if err != nil {
		logger.Warnf("[advisory] %s 解析失败: %v", req.Name, err)
		return Fallback()
	}
	if level := req.Reading.Risk.Level(); level >= FuseThreshold {
		res.Decision = decision.VerdictReject
		res.Adjustment = -30
		res.Conclusion = fmt.Sprintf("[系统熔断] %s - 强制执行风控纪律。", req.Reading.RiskReason)
	}
	return res
}

func (c *Committee) call(ctx context.Context, name, prompt string) (string, error) {
	payload := provider.ChatPayload{
		System:      systemPrompt,
		User:        prompt,
		ExpectJSON:  true,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
	raw, err := c.invoke(ctx, "advisory "+name, payload)
	if err != nil {
		return "", err
	}
	logger.LogLLMExchange(name, c.model.ID(), prompt, raw)
	return raw, nil
}

// invoke 在熔断器保护下带重试地调用模型；熔断打开时不再重试。
func (c *Committee) invoke(ctx context.Context, name string, payload provider.ChatPayload) (string, error) {
	op := func(ctx context.Context) (string, error) {
		if c.breaker == nil {
			return c.model.Call(ctx, payload)
		}
		var out string
		err := c.breaker.Execute(func() error {
			var callErr error
			out, callErr = c.model.Call(ctx, payload)
			return callErr
		})
		if errors.Is(err, circuit.ErrOpen) {
			return "", retry.Permanent(err)
		}
		return out, err
	}
	return retry.Do(ctx, name, c.opts.Attempts, c.opts.RetryDelay, op)
}

func (c *Committee) parse(raw string) (Result, error) {
	obj, ok := jsonutil.CleanObject(raw)
	if !ok {
		return Result{}, fmt.Errorf("no json object in reply")
	}
	if err := validateResponse(c.schema, obj); err != nil {
		return Result{}, err
	}
	doc := gjson.Parse(obj)
	res := Result{
		Bull:       doc.Get("bull_view").String(),
		Bear:       doc.Get("bear_view").String(),
		Conclusion: doc.Get("chairman_conclusion").String(),
		Decision:   normalizeVerdict(doc.Get("decision").String()),
		Source:     SourceModel,
	}
	if adj, ok := convert.ToInt(doc.Get("adjustment").Value()); ok {
		res.Adjustment = max(-100, min(100, adj))
	}
	return res, nil
}

// normalizeVerdict 取第一个可识别的指令；模型有时原样返回 "EXECUTE|REJECT|HOLD"。
func normalizeVerdict(s string) decision.Verdict {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == '/' || r == ' ' }) {
		switch decision.Verdict(part) {
		case decision.VerdictExecute, decision.VerdictReject, decision.VerdictHold:
			return decision.Verdict(part)
		}
	}
	return decision.VerdictHold
}
