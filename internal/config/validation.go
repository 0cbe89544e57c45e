package config

import (
	"fmt"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	if err := c.Advisory.validate(); err != nil {
		return err
	}
	if err := c.Valuation.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	return validateFunds(c.Funds)
}

func (a *AppConfig) validate() error {
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("app.timezone invalid (%s): %w", a.Timezone, err)
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if e.Workers <= 0 {
		return fmt.Errorf("engine.workers must be > 0")
	}
	if e.BaseInvestAmount < 0 {
		return fmt.Errorf("engine.base_invest_amount must be >= 0")
	}
	if e.MaxDailyInvest < 0 {
		return fmt.Errorf("engine.max_daily_invest must be >= 0")
	}
	if e.MinHoldDays < 0 {
		return fmt.Errorf("engine.min_hold_days must be >= 0")
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	switch l.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("ledger.backend must be json or sqlite, got %q", l.Backend)
	}
	if strings.TrimSpace(l.Path) == "" {
		return fmt.Errorf("ledger.path cannot be empty")
	}
	return nil
}

func (a *AdvisoryConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if strings.TrimSpace(a.APIURL) == "" {
		return fmt.Errorf("advisory.api_url cannot be empty when advisory is enabled")
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("advisory.model cannot be empty when advisory is enabled")
	}
	if a.RetryDelaySeconds < 0 {
		return fmt.Errorf("advisory.retry_delay_seconds must be >= 0")
	}
	return nil
}

func (v *ValuationConfig) validate() error {
	if !v.Enabled {
		return nil
	}
	if strings.TrimSpace(v.BaseURL) == "" {
		return fmt.Errorf("valuation.base_url cannot be empty when valuation is enabled")
	}
	if v.RetryDelaySeconds < 0 {
		return fmt.Errorf("valuation.retry_delay_seconds must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	if _, _, err := s.Clock(); err != nil {
		return err
	}
	return nil
}

// Clock 解析 schedule.at（HH:MM）。
func (s ScheduleConfig) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s.At))
	if err != nil {
		return 0, 0, fmt.Errorf("schedule.at must be HH:MM, got %q", s.At)
	}
	return t.Hour(), t.Minute(), nil
}

// ValidateFunds 校验标的清单：代码必填且不可重复。
func ValidateFunds(funds []Fund) error {
	return validateFunds(funds)
}

func validateFunds(funds []Fund) error {
	seen := make(map[string]bool, len(funds))
	for i, f := range funds {
		code := strings.TrimSpace(f.Code)
		if code == "" {
			return fmt.Errorf("funds[%d] missing code", i)
		}
		if seen[code] {
			return fmt.Errorf("funds contains duplicate code: %s", code)
		}
		seen[code] = true
	}
	return nil
}
