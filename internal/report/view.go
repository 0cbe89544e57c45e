package report

import (
	"fmt"
	"html/template"
	"time"

	"magpie/internal/advisory"
	"magpie/internal/analysis/technical"
	"magpie/internal/decision"
	"magpie/internal/engine"
	"magpie/internal/pkg/currency"
)

// Card 是报告中单个标的的展示数据。
type Card struct {
	Code        string
	Name        string
	Action      decision.Action
	ActionText  string
	Score       int
	Adjustment  int
	Risk        string
	RiskComment string
	Vetoed      bool
	HasPosition bool
	PnL         float64
	PnLText     string
	RSI         string
	Trend       string
	VolumeRatio string
	Valuation   string
	Reasons     []string
	Bull        template.HTML
	Bear        template.HTML
	Chairman    template.HTML
	HasDebate   bool
}

// Memos 是收盘后的两份备忘录原文（Markdown）。
type Memos struct {
	Review  string
	RedTeam string
}

// Page 是整份报告的模板数据。
type Page struct {
	Title     string
	RunID     string
	Generated string
	Review    template.HTML
	RedTeam   template.HTML
	Audit     []string
	Cards     []Card
	Failures  []string
	ChartFile string
}

func buildPage(title string, s engine.Summary, memos Memos, chartFile string) Page {
	p := Page{
		Title:     title,
		RunID:     s.RunID,
		Generated: s.FinishedAt.Format("2006-01-02 15:04:05"),
		Review:    RenderNarrative(memos.Review),
		RedTeam:   RenderNarrative(memos.RedTeam),
		Audit:     s.AuditLines(),
		ChartFile: chartFile,
	}
	for _, res := range s.Results {
		p.Cards = append(p.Cards, buildCard(res))
	}
	for _, f := range s.Failures {
		p.Failures = append(p.Failures, f.Error())
	}
	return p
}

func buildCard(res engine.Result) Card {
	ins := res.Instruction
	c := Card{
		Code:        res.Fund.Code,
		Name:        res.Fund.Name,
		Action:      ins.Action,
		Score:       ins.TacticalScore,
		Adjustment:  res.Advisory.Adjustment,
		Risk:        string(res.Reading.Risk),
		RiskComment: res.Reading.RiskReason,
		Vetoed:      res.Reading.Risk == technical.RiskVeto,
		RSI:         fmt.Sprintf("%.2f", res.Reading.RSI),
		Trend:       res.Reading.MACD.Trend,
		VolumeRatio: fmt.Sprintf("%.2f", res.Reading.VolumeRatio),
		Valuation:   res.Valuation.Descriptor,
		Reasons:     ins.Reasons,
	}
	switch ins.Action {
	case decision.ActionBuy:
		c.ActionText = "⚡ 买入 " + currency.CNY(ins.BuyAmount)
	case decision.ActionSell:
		c.ActionText = "💰 卖出 " + currency.CNY(ins.SellValue)
	default:
		c.ActionText = "☕ 观望"
	}
	if res.Position.Shares > 0 {
		pnl, _ := res.Position.UnrealizedPnL(res.Reading.Price)
		c.HasPosition = true
		c.PnL = pnl
		c.PnLText = fmt.Sprintf("%+.1f元", pnl)
	}
	adv := res.Advisory
	if adv.Source == advisory.SourceModel {
		c.HasDebate = true
		c.Bull = RenderNarrative(adv.Bull)
		c.Bear = RenderNarrative(adv.Bear)
		c.Chairman = RenderNarrative(adv.Conclusion)
	}
	return c
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("2006-01-02")
}
