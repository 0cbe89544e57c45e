package engine

import (
	"fmt"
	"strings"
	"time"

	"magpie/internal/advisory"
	"magpie/internal/analysis/technical"
	"magpie/internal/config"
	"magpie/internal/decision"
	"magpie/internal/ledger"
	"magpie/internal/valuation"
)

// 失败阶段。
const (
	StageData   = "data"
	StageLedger = "ledger"
	StagePanic  = "panic"
)

// InstrumentError 记录单个标的在某一阶段的失败；该标的被排除出本轮结果。
type InstrumentError struct {
	Code  string
	Stage string
	Err   error
}

func (e *InstrumentError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Code, e.Stage, e.Err)
}

func (e *InstrumentError) Unwrap() error { return e.Err }

// Result 是单个标的一轮决策的完整产出。
type Result struct {
	Fund        config.Fund               `json:"fund"`
	Reading     technical.Reading         `json:"reading"`
	Valuation   valuation.Result          `json:"valuation"`
	Advisory    advisory.Result           `json:"advisory"`
	Instruction decision.TradeInstruction `json:"instruction"`
	// Position 为执行指令之后的持仓。
	Position  ledger.Position `json:"position"`
	AuditLine string          `json:"audit_line"`
}

// Summary 是一轮决策的汇总，Results 按战术分降序。
type Summary struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Results    []Result           `json:"results"`
	Failures   []*InstrumentError `json:"-"`
	// News 是本轮读取的宏观新闻上下文，供复盘使用。
	News string `json:"-"`
}

// AuditLines 返回本轮所有标的的审计行，供报告与日志使用。
func (s Summary) AuditLines() []string {
	out := make([]string, 0, len(s.Results))
	for _, r := range s.Results {
		out = append(out, r.AuditLine)
	}
	return out
}

// Counts 按动作统计本轮指令数量。
func (s Summary) Counts() map[decision.Action]int {
	out := map[decision.Action]int{}
	for _, r := range s.Results {
		out[r.Instruction.Action]++
	}
	return out
}

// auditLine 格式: 标的:名称 | 决策:买入 (分:72 AI:+10) | 理由:a, b
func auditLine(name string, ins decision.TradeInstruction, adj int) string {
	reasons := "-"
	if len(ins.Reasons) > 0 {
		reasons = strings.Join(ins.Reasons, ", ")
	}
	return fmt.Sprintf("标的:%s | 决策:%s (分:%d AI:%+d) | 理由:%s",
		name, ins.Action.Label(), ins.TacticalScore, adj, reasons)
}
