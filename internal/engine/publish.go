package engine

import (
	"context"
	"fmt"
	"strings"

	"magpie/internal/decision"
	"magpie/internal/gateway/notifier"
	"magpie/internal/logger"
	"magpie/internal/pkg/currency"
	"magpie/internal/store/journal"
)

// publish 把本轮结果交给指标、日志库、报告和通知；各环节失败只记录日志。
func (r *Runner) publish(ctx context.Context, s Summary) {
	r.env.Metrics.ObserveCycle(s.StartedAt, s.FinishedAt, r.openPositions())

	if r.env.Journal != nil {
		run, entries := journalRecords(s)
		if err := r.env.Journal.Record(ctx, run, entries); err != nil {
			logger.Errorf("[engine] 写入决策日志失败: %v", err)
		}
	}
	if r.env.Reporter != nil {
		if err := r.env.Reporter.Publish(ctx, s); err != nil {
			logger.Errorf("[engine] 生成报告失败: %v", err)
		}
	}
	if r.env.Notifier != nil && len(s.Results) > 0 {
		msg := digest(r.env.Title, s)
		if err := r.env.Notifier.SendText(ctx, msg.RenderMarkdown()); err != nil {
			logger.Warnf("[engine] 推送摘要失败: %v", err)
		}
	}
}

func (r *Runner) openPositions() int {
	n := 0
	for _, pos := range r.env.Ledger.Positions() {
		if pos.Shares > 0 {
			n++
		}
	}
	return n
}

func journalRecords(s Summary) (journal.Run, []journal.Entry) {
	counts := s.Counts()
	run := journal.Run{
		ID:         s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Funds:      len(s.Results) + len(s.Failures),
		Failures:   len(s.Failures),
		Summary: fmt.Sprintf("buy=%d sell=%d hold=%d",
			counts[decision.ActionBuy], counts[decision.ActionSell], counts[decision.ActionHold]),
	}
	entries := make([]journal.Entry, 0, len(s.Results)+len(s.Failures))
	for _, res := range s.Results {
		ins := res.Instruction
		entries = append(entries, journal.Entry{
			Code:               res.Fund.Code,
			Name:               res.Fund.Name,
			Action:             string(ins.Action),
			BuyAmount:          int64(ins.BuyAmount),
			SellValue:          ins.SellValue,
			Price:              res.Reading.Price,
			Score:              ins.TacticalScore,
			Tier:               ins.Tier,
			Risk:               string(res.Reading.Risk),
			AdvisoryDecision:   string(res.Advisory.Decision),
			AdvisoryAdjustment: res.Advisory.Adjustment,
			Valuation:          res.Valuation.Descriptor,
			Reasons:            ins.Reasons,
			Conclusion:         res.Advisory.Conclusion,
		})
	}
	for _, f := range s.Failures {
		entries = append(entries, journal.Entry{
			Code:   f.Code,
			Action: string(decision.ActionHold),
			Error:  fmt.Sprintf("%s: %v", f.Stage, f.Err),
		})
	}
	return run, entries
}

func digest(title string, s Summary) notifier.StructuredMessage {
	if strings.TrimSpace(title) == "" {
		title = "每日信号"
	}
	lines := make([]notifier.DigestLine, 0, len(s.Results))
	for _, res := range s.Results {
		ins := res.Instruction
		line := notifier.DigestLine{
			Name:   res.Fund.Name,
			Action: ins.Action.Label(),
			Score:  ins.TacticalScore,
			Risk:   string(res.Reading.Risk),
			Reason: strings.Join(ins.Reasons, ", "),
		}
		switch ins.Action {
		case decision.ActionBuy:
			line.Amount = currency.CNY(ins.BuyAmount)
		case decision.ActionSell:
			line.Amount = currency.CNY(ins.SellValue)
		}
		lines = append(lines, line)
	}
	footer := ""
	if n := len(s.Failures); n > 0 {
		footer = fmt.Sprintf("%d 个标的处理失败，详见日志", n)
	}
	return notifier.DigestMessage(title, lines, footer, s.FinishedAt)
}
