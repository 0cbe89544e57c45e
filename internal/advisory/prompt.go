package advisory

import (
	"fmt"
	"strings"
	"text/template"

	"magpie/internal/pkg/text"
)

const maxNewsRunes = 25000

const systemPrompt = "你是鹊知风投委会 (IC) 的会议记录员，只输出一个 JSON 对象，不要输出任何额外文字。"

var committeeTmpl = template.Must(template.New("committee").Parse(`【系统架构】鹊知风投委会 (IC) | 角色纪律规范 v2.0

【标的信息】
标的: {{.Name}} (属性: {{.Strategy}})
趋势强度: {{.Score}}/100 | 熔断状态: Level{{.FuseLevel}} | 硬约束: {{.FuseMsg}}
技术指标: RSI={{.RSI}} | MACD={{.MACD}} | 周线={{.Weekly}} | 量比={{.VolumeRatio}}
估值: {{.Valuation}}

【实时舆情】
{{.News}}

【角色纪律】
1. CRO (防守底线): 保护本金，关注尾部风险与相关性；禁止把地缘政治当作万能利空。
2. CGO (进攻锋线): 寻找催化剂与动量；必须证明新闻与标的存在直接因果，拒绝缩量上涨。
3. CIO (决策中枢): 计算盈亏比并给出具体的仓位调整建议 (adjustment)。

【任务】
仅基于提供的数据，模拟上述三位角色的辩论。
若熔断 Level >= 2，直接执行风控清仓逻辑。

【输出格式】
{
    "bull_view": "CGO观点",
    "bear_view": "CRO观点",
    "chairman_conclusion": "CIO最终裁决",
    "decision": "EXECUTE|REJECT|HOLD",
    "adjustment": -100 ~ 100
}
`))

type promptData struct {
	Name        string
	Strategy    string
	Score       int
	FuseLevel   int
	FuseMsg     string
	RSI         string
	MACD        string
	Weekly      string
	VolumeRatio string
	Valuation   string
	News        string
}

// BuildPrompt 渲染投委会提示词。
func BuildPrompt(req Request) (string, error) {
	news := strings.TrimSpace(req.News)
	if news == "" {
		news = noNews
	}
	news = text.Runes(news, maxNewsRunes)
	valuation := strings.TrimSpace(req.Valuation)
	if valuation == "" {
		valuation = "-"
	}
	data := promptData{
		Name:        req.Name,
		Strategy:    req.Strategy,
		Score:       req.Reading.Score,
		FuseLevel:   req.Reading.Risk.Level(),
		FuseMsg:     req.Reading.RiskReason,
		RSI:         fmt.Sprintf("%.2f", req.Reading.RSI),
		MACD:        req.Reading.MACD.Trend,
		Weekly:      req.Reading.WeeklyTrend,
		VolumeRatio: fmt.Sprintf("%.2f", req.Reading.VolumeRatio),
		Valuation:   valuation,
		News:        news,
	}
	var b strings.Builder
	if err := committeeTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
