package decision

import "magpie/internal/analysis/technical"

// Action 是最终交易动作。
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Label 返回报告中使用的中文动作名。
func (a Action) Label() string {
	switch a {
	case ActionBuy:
		return "买入"
	case ActionSell:
		return "卖出"
	default:
		return "观望"
	}
}

// Verdict 是投委会给出的指令。PASS 表示未启用投委会。
type Verdict string

const (
	VerdictExecute Verdict = "EXECUTE"
	VerdictReject  Verdict = "REJECT"
	VerdictHold    Verdict = "HOLD"
	VerdictPass    Verdict = "PASS"
)

// Strategy 是标的所属的资金策略类别。
type Strategy string

const (
	StrategyCore      Strategy = "core"
	StrategySatellite Strategy = "satellite"
	StrategyDividend  Strategy = "dividend"
)

// Holding 是决策所需的持仓快照。
type Holding struct {
	Shares   float64 `json:"shares"`
	Cost     float64 `json:"cost"`
	HeldDays int     `json:"held_days"`
}

// Input 汇总单个标的一次决策的全部输入。
type Input struct {
	Reading             technical.Reading
	AdvisoryAdjustment  int
	AdvisoryVerdict     Verdict
	ValuationMultiplier float64
	ValuationDescriptor string
	BaseAmount          float64
	MaxDailyAmount      float64
	Holding             Holding
	Strategy            Strategy
	// MinHoldDays 为卖出前的最短持有天数，<=0 时取 DefaultMinHoldDays。
	MinHoldDays int
}

// TradeInstruction 是决策引擎的输出。BuyAmount 与 SellValue 至多一个非零。
type TradeInstruction struct {
	Action         Action   `json:"action"`
	BuyAmount      float64  `json:"buy_amount"`
	SellValue      float64  `json:"sell_value"`
	Reasons        []string `json:"reasons"`
	TacticalScore  int      `json:"tactical_score"`
	Tier           string   `json:"tier,omitempty"`
	TierMultiplier float64  `json:"tier_multiplier"`
	Multiplier     float64  `json:"multiplier"`
}
