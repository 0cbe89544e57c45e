package decision

import (
	"testing"

	"magpie/internal/analysis/technical"

	"github.com/stretchr/testify/assert"
)

func baseInput(score int) Input {
	return Input{
		Reading:             technical.Reading{Score: score, Price: 2.0, Risk: technical.RiskPass},
		AdvisoryVerdict:     VerdictPass,
		ValuationMultiplier: 1.0,
		ValuationDescriptor: "neutral",
		BaseAmount:          1000,
		MaxDailyAmount:      5000,
		Strategy:            StrategyCore,
	}
}

func TestDecide_AdvisoryReject(t *testing.T) {
	in := baseInput(90)
	in.AdvisoryVerdict = VerdictReject
	out := Decide(in)
	assert.Equal(t, 0, out.TacticalScore)
	// 0 分落入 breakdown 档，但空仓无可卖
	assert.Equal(t, ActionHold, out.Action)
	assert.Equal(t, 0.0, out.SellValue)
	assert.Equal(t, 0.0, out.BuyAmount)
	assert.Equal(t, ReasonAdvisoryVeto, out.Reasons[0])
}

func TestDecide_AdvisoryRejectWithShortHolding(t *testing.T) {
	in := baseInput(90)
	in.AdvisoryVerdict = VerdictReject
	in.Holding = Holding{Shares: 100, Cost: 2, HeldDays: 3}
	out := Decide(in)
	assert.Equal(t, ActionHold, out.Action)
	assert.Equal(t, 0.0, out.SellValue)
	assert.Contains(t, out.Reasons, "short-hold lock (3 days)")
}

func TestDecide_AdvisoryHoldCap(t *testing.T) {
	in := baseInput(80)
	in.AdvisoryVerdict = VerdictHold
	out := Decide(in)
	assert.Equal(t, 59, out.TacticalScore)
	assert.Equal(t, ActionHold, out.Action)
	assert.Equal(t, []string{ReasonAdvisoryHoldCap}, out.Reasons)

	in = baseInput(40)
	in.AdvisoryVerdict = VerdictHold
	assert.Equal(t, 40, Decide(in).TacticalScore)
}

func TestDecide_AdjustmentIsClamped(t *testing.T) {
	in := baseInput(90)
	in.AdvisoryAdjustment = 30
	assert.Equal(t, 100, Decide(in).TacticalScore)

	in = baseInput(10)
	in.AdvisoryAdjustment = -30
	assert.Equal(t, 0, Decide(in).TacticalScore)
}

func TestTier(t *testing.T) {
	cases := []struct {
		score int
		tier  string
		mult  float64
	}{
		{100, TierStrong, 2}, {85, TierStrong, 2}, {84, TierStrengthening, 1}, {70, TierStrengthening, 1},
		{69, TierStabilizing, 0.5}, {60, TierStabilizing, 0.5}, {59, "", 0}, {26, "", 0},
		{25, TierBreakdown, -1}, {0, TierBreakdown, -1},
	}
	for _, tc := range cases {
		tier, mult := Tier(tc.score)
		assert.Equal(t, tc.tier, tier, "score %d", tc.score)
		assert.Equal(t, tc.mult, mult, "score %d", tc.score)
	}
}

func TestDecide_ValuationBlend(t *testing.T) {
	cases := []struct {
		name     string
		score    int
		val      float64
		strategy Strategy
		shares   float64
		action   Action
		buy      float64
		sell     float64
		reason   string
	}{
		{"overvalued brake", 90, 0.4, StrategyCore, 0, ActionHold, 0, 0, ReasonOvervaluedBrake},
		{"undervalued amplify", 75, 1.2, StrategyCore, 0, ActionBuy, 1200, 0, ReasonUndervaluedBoost},
		{"amplify capped by max daily", 90, 3.0, StrategyCore, 0, ActionBuy, 5000, 0, ReasonUndervaluedBoost},
		{"deep value lock", 20, 1.5, StrategyCore, 100, ActionHold, 0, 0, ReasonDeepValueLock},
		{"overvalued exit", 20, 0.5, StrategyCore, 100, ActionSell, 0, 200, ReasonOvervaluedExit},
		{"contrarian core", 50, 1.5, StrategyCore, 0, ActionBuy, 500, 0, ReasonContrarian},
		{"contrarian dividend", 50, 1.5, StrategyDividend, 0, ActionBuy, 500, 0, ReasonContrarian},
		{"no contrarian for satellite", 50, 1.5, StrategySatellite, 0, ActionHold, 0, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput(tc.score)
			in.ValuationMultiplier = tc.val
			in.Strategy = tc.strategy
			in.Holding = Holding{Shares: tc.shares, Cost: 1, HeldDays: 30}
			out := Decide(in)
			assert.Equal(t, tc.action, out.Action)
			assert.Equal(t, tc.buy, out.BuyAmount)
			assert.InDelta(t, tc.sell, out.SellValue, 1e-9)
			if tc.reason != "" {
				assert.Contains(t, out.Reasons, tc.reason)
			}
		})
	}
}

func TestDecide_RiskVetoBlocksEntryOnly(t *testing.T) {
	in := baseInput(90)
	in.Reading.Risk = technical.RiskVeto
	out := Decide(in)
	assert.Equal(t, ActionHold, out.Action)
	assert.Contains(t, out.Reasons, ReasonRiskVeto)

	in = baseInput(10)
	in.Reading.Risk = technical.RiskVeto
	in.Holding = Holding{Shares: 50, Cost: 1, HeldDays: 10}
	out = Decide(in)
	assert.Equal(t, ActionSell, out.Action)
	assert.InDelta(t, 100, out.SellValue, 1e-9)
	assert.NotContains(t, out.Reasons, ReasonRiskVeto)
}

func TestDecide_WarnNeverBlocksBuy(t *testing.T) {
	in := baseInput(75)
	in.Reading.Risk = technical.RiskWarn
	out := Decide(in)
	assert.Equal(t, ActionBuy, out.Action)
	assert.Equal(t, 1000.0, out.BuyAmount)
}

func TestDecide_LockIn(t *testing.T) {
	for _, val := range []float64{0.0, 0.5, 0.9, 1.0, 1.1} {
		in := baseInput(10)
		in.ValuationMultiplier = val
		in.Holding = Holding{Shares: 100, Cost: 2, HeldDays: 6}
		out := Decide(in)
		assert.Equal(t, ActionHold, out.Action, "val %v", val)
		assert.Equal(t, 0.0, out.SellValue)
		assert.Equal(t, 0.0, out.BuyAmount)
	}

	in := baseInput(10)
	in.Holding = Holding{Shares: 100, Cost: 2, HeldDays: 7}
	out := Decide(in)
	assert.Equal(t, ActionSell, out.Action)
	assert.InDelta(t, 200, out.SellValue, 1e-9)

	in.MinHoldDays = 10
	assert.Equal(t, ActionHold, Decide(in).Action)
}

func TestDecide_AmountBounds(t *testing.T) {
	for score := 0; score <= 100; score += 5 {
		for _, val := range []float64{0, 0.3, 0.8, 1.0, 1.5, 3} {
			in := baseInput(score)
			in.ValuationMultiplier = val
			in.BaseAmount = 3333.3
			in.MaxDailyAmount = 5000
			in.Holding = Holding{Shares: 40, Cost: 1, HeldDays: 9}
			out := Decide(in)
			assert.GreaterOrEqual(t, out.BuyAmount, 0.0)
			assert.LessOrEqual(t, out.BuyAmount, 5000.0)
			assert.LessOrEqual(t, out.SellValue, 40*in.Reading.Price+1e-9)
			assert.GreaterOrEqual(t, out.TacticalScore, 0)
			assert.LessOrEqual(t, out.TacticalScore, 100)
		}
	}
}

func TestDecide_ZeroBaseAmountHolds(t *testing.T) {
	in := baseInput(90)
	in.BaseAmount = 0
	out := Decide(in)
	assert.Equal(t, ActionHold, out.Action)
	assert.Equal(t, 2.0, out.Multiplier)
}

func TestDecide_BuyAmountRounds(t *testing.T) {
	in := baseInput(65)
	in.BaseAmount = 1001
	out := Decide(in)
	assert.Equal(t, ActionBuy, out.Action)
	// 1001 * 0.5 = 500.5，四舍五入
	assert.Equal(t, 501.0, out.BuyAmount)
}
