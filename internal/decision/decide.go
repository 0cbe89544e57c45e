package decision

import (
	"fmt"
	"math"

	"magpie/internal/analysis/technical"
)

// DefaultMinHoldDays 是卖出锁仓的默认天数。
const DefaultMinHoldDays = 7

// 战术档位。
const (
	TierStrong        = "strong"
	TierStrengthening = "strengthening"
	TierStabilizing   = "stabilizing"
	TierBreakdown     = "breakdown"
)

// 理由标签。
const (
	ReasonAdvisoryVeto     = "advisory veto"
	ReasonAdvisoryHoldCap  = "advisory hold-cap"
	ReasonOvervaluedBrake  = "valuation:overvalued brake"
	ReasonUndervaluedBoost = "valuation:undervalued amplify"
	ReasonDeepValueLock    = "valuation:deep value lock"
	ReasonOvervaluedExit   = "valuation:overvalued exit accelerate"
	ReasonContrarian       = "valuation:contrarian scale-in"
	ReasonRiskVeto         = "risk veto blocks entry"
)

// Decide 按固定优先级把技术面、投委会、估值与持仓融合为交易指令。
// 纯函数：不读写账本。
func Decide(in Input) TradeInstruction {
	var reasons []string
	score := clampInt(in.Reading.Score+in.AdvisoryAdjustment, 0, 100)

	switch {
	case in.AdvisoryVerdict == VerdictReject:
		score = 0
		reasons = append(reasons, ReasonAdvisoryVeto)
	case in.AdvisoryVerdict == VerdictHold && score >= 60:
		score = 59
		reasons = append(reasons, ReasonAdvisoryHoldCap)
	}

	tier, tierMult := Tier(score)
	if tier != "" {
		reasons = append(reasons, "tactical:"+tier)
	}

	mult := tierMult
	val := in.ValuationMultiplier
	switch {
	case tierMult > 0:
		if val < 0.5 {
			mult = 0
			reasons = append(reasons, ReasonOvervaluedBrake)
		} else if val > 1.0 {
			mult *= val
			reasons = append(reasons, ReasonUndervaluedBoost)
		}
	case tierMult < 0:
		if val > 1.2 {
			mult = 0
			reasons = append(reasons, ReasonDeepValueLock)
		} else if val < 0.8 {
			mult *= 1.5
			reasons = append(reasons, ReasonOvervaluedExit)
		}
	default:
		if val >= 1.5 && (in.Strategy == StrategyCore || in.Strategy == StrategyDividend) {
			mult = 0.5
			reasons = append(reasons, ReasonContrarian)
		}
	}

	// VETO 只拦截买入，不拦截卖出；WARN 不拦截任何动作。
	if in.Reading.Risk == technical.RiskVeto && mult > 0 {
		mult = 0
		reasons = append(reasons, ReasonRiskVeto)
	}

	minHold := in.MinHoldDays
	if minHold <= 0 {
		minHold = DefaultMinHoldDays
	}
	if mult < 0 && in.Holding.Shares > 0 && in.Holding.HeldDays < minHold {
		mult = 0
		reasons = append(reasons, fmt.Sprintf("short-hold lock (%d days)", in.Holding.HeldDays))
	}

	out := TradeInstruction{
		Action:         ActionHold,
		TacticalScore:  score,
		Tier:           tier,
		TierMultiplier: tierMult,
		Multiplier:     mult,
		Reasons:        reasons,
	}
	switch {
	case mult > 0:
		amount := math.Round(in.BaseAmount * mult)
		amount = math.Max(0, math.Min(amount, math.Floor(in.MaxDailyAmount)))
		if amount > 0 {
			out.Action = ActionBuy
			out.BuyAmount = amount
		}
	case mult < 0:
		// 空仓时没有可卖份额，按观望处理
		fraction := math.Min(math.Abs(mult), 1.0)
		value := in.Holding.Shares * in.Reading.Price * fraction
		if value > 0 {
			out.Action = ActionSell
			out.SellValue = value
		}
	}
	return out
}

// Tier 把战术分映射到档位与倍数；26–59 为空档。
func Tier(score int) (string, float64) {
	switch {
	case score >= 85:
		return TierStrong, 2.0
	case score >= 70:
		return TierStrengthening, 1.0
	case score >= 60:
		return TierStabilizing, 0.5
	case score <= 25:
		return TierBreakdown, -1.0
	default:
		return "", 0
	}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
