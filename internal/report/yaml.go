package report

import (
	"magpie/internal/engine"

	"gopkg.in/yaml.v3"
)

type yamlSummary struct {
	RunID      string        `yaml:"run_id"`
	StartedAt  string        `yaml:"started_at"`
	FinishedAt string        `yaml:"finished_at"`
	Results    []yamlResult  `yaml:"results"`
	Failures   []yamlFailure `yaml:"failures,omitempty"`
}

type yamlResult struct {
	Code       string   `yaml:"code"`
	Name       string   `yaml:"name"`
	Action     string   `yaml:"action"`
	BuyAmount  float64  `yaml:"buy_amount,omitempty"`
	SellValue  float64  `yaml:"sell_value,omitempty"`
	Score      int      `yaml:"score"`
	Tier       string   `yaml:"tier,omitempty"`
	Risk       string   `yaml:"risk"`
	RiskReason string   `yaml:"risk_reason"`
	Advisory   string   `yaml:"advisory"`
	Adjustment int      `yaml:"adjustment"`
	Valuation  string   `yaml:"valuation"`
	Reasons    []string `yaml:"reasons,omitempty"`
	Shares     float64  `yaml:"shares"`
	Cost       float64  `yaml:"cost"`
	HeldDays   int      `yaml:"held_days"`
}

type yamlFailure struct {
	Code  string `yaml:"code"`
	Stage string `yaml:"stage"`
	Error string `yaml:"error"`
}

// MarshalSummary 生成报告的 YAML 附件。
func MarshalSummary(s engine.Summary) ([]byte, error) {
	out := yamlSummary{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt.Format("2006-01-02 15:04:05"),
		FinishedAt: s.FinishedAt.Format("2006-01-02 15:04:05"),
	}
	for _, res := range s.Results {
		ins := res.Instruction
		out.Results = append(out.Results, yamlResult{
			Code:       res.Fund.Code,
			Name:       res.Fund.Name,
			Action:     string(ins.Action),
			BuyAmount:  ins.BuyAmount,
			SellValue:  ins.SellValue,
			Score:      ins.TacticalScore,
			Tier:       ins.Tier,
			Risk:       string(res.Reading.Risk),
			RiskReason: res.Reading.RiskReason,
			Advisory:   string(res.Advisory.Decision),
			Adjustment: res.Advisory.Adjustment,
			Valuation:  res.Valuation.Descriptor,
			Reasons:    ins.Reasons,
			Shares:     res.Position.Shares,
			Cost:       res.Position.Cost,
			HeldDays:   res.Position.HeldDays,
		})
	}
	for _, f := range s.Failures {
		out.Failures = append(out.Failures, yamlFailure{Code: f.Code, Stage: f.Stage, Error: f.Err.Error()})
	}
	return yaml.Marshal(out)
}
