package advisory

import (
	"context"
	"strings"
	"text/template"
	"time"

	"magpie/internal/gateway/provider"
	"magpie/internal/logger"
	"magpie/internal/pkg/text"
)

// ReviewOffline 是复盘不可用时的占位文本。
const ReviewOffline = "复盘生成中..."

const (
	maxReviewRunes = 3000
	maxMacroRunes  = 2500
	noNews         = "今日暂无重大新闻。"
)

// ReviewInput 是收盘复盘的输入：本轮审计行与当日宏观新闻。
type ReviewInput struct {
	AuditLines []string
	Macro      string
	Day        time.Time
}

// Reviewer 生成两份收盘备忘录（Markdown）：CIO 复盘与 Red Team 审计。
type Reviewer interface {
	Review(ctx context.Context, in ReviewInput) string
	RedTeam(ctx context.Context, in ReviewInput) string
}

var reviewTmpl = template.Must(template.New("review").Parse(`【系统角色】鹊知风 CIO | 战略复盘
日期: {{.Date}}

【输入数据】
1. 宏观环境: {{.Macro}}
2. 交易决策:
{{.Decisions}}

【战略任务】
撰写《每日投资复盘备忘录》：
1. 宏观定调：恐慌 / 贪婪 / 分歧，并指出主要矛盾。
2. 策略一致性检查：同一定调下的操作是否自相矛盾。
3. 风险提示：数据中隐含的尾部风险、流动性陷阱与相关性崩塌。

【输出】Markdown 格式的备忘录，不超过 400 字。
`))

var redTeamTmpl = template.Must(template.New("redteam").Parse(`【系统角色】鹊知风 Red Team | 独立逻辑审计
日期: {{.Date}}

【输入数据】
宏观: {{.Macro}}
交易:
{{.Decisions}}

【审计任务】
作为找茬专家，攻击 CIO 的决策逻辑，寻找盲区与过拟合。

【五维压力测试】
Q1: 决策激进性审计（是否在接飞刀？）
Q2: 宏观逻辑漏洞（是否用同样的宏观理由解释完全相反的交易？）
Q3: 仓位合理性（是否缺乏对冲？）
Q4: 趋势背离风险（是否在对抗不可逆转的趋势？）
Q5: 情绪化交易检测（CGO 是否存在强行关联？）

【输出】Markdown 格式的风控审计报告，必须包含「关键漏洞」和「风险评级」。
`))

type memoData struct {
	Date      string
	Macro     string
	Decisions string
}

// Review 调用模型生成 CIO 复盘；失败时返回 ReviewOffline。
func (c *Committee) Review(ctx context.Context, in ReviewInput) string {
	return c.memo(ctx, "cio-review", reviewTmpl, in)
}

// RedTeam 调用模型对本轮决策做五维压力测试；失败时返回 ReviewOffline。
func (c *Committee) RedTeam(ctx context.Context, in ReviewInput) string {
	return c.memo(ctx, "red-team", redTeamTmpl, in)
}

func (c *Committee) memo(ctx context.Context, name string, tmpl *template.Template, in ReviewInput) string {
	if len(in.AuditLines) == 0 {
		return ""
	}
	macro := strings.TrimSpace(in.Macro)
	if macro == "" {
		macro = noNews
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, memoData{
		Date:      in.Day.Format("2006年01月02日"),
		Macro:     text.Runes(macro, maxMacroRunes),
		Decisions: text.Runes(strings.Join(in.AuditLines, "\n"), maxReviewRunes),
	}); err != nil {
		logger.Errorf("[advisory] %s prompt: %v", name, err)
		return ReviewOffline
	}
	payload := provider.ChatPayload{
		User:        b.String(),
		Temperature: 0.3,
		MaxTokens:   max(c.opts.MaxTokens, 1500),
	}
	memo, err := c.invoke(ctx, name, payload)
	if err != nil {
		logger.Warnf("[advisory] %s 不可用: %v", name, err)
		return ReviewOffline
	}
	logger.LogLLMExchange(name, c.model.ID(), payload.User, memo)
	return strings.TrimSpace(memo)
}
