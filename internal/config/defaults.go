package config

import (
	"os"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppLogFormat       = "text"
	defaultAppLogPath         = "logs/latest_run.log"
	defaultAppHTTPAddr        = ":9992"
	defaultAppTimezone        = "Asia/Shanghai"
	defaultEngineWorkers      = 5
	defaultBaseInvestAmount   = 1000
	defaultMaxDailyInvest     = 5000
	defaultLookupTimeout      = 120
	defaultMinHoldDays        = 7
	defaultDataCacheDir       = "data_cache"
	defaultDataNewsDir        = "data_news"
	defaultLedgerBackend      = "json"
	defaultLedgerJSONPath     = "portfolio.json"
	defaultLedgerSQLitePath   = "data/ledger.db"
	defaultJournalPath        = "data/journal.db"
	defaultAdvisoryURL        = "https://api.siliconflow.cn/v1"
	defaultAdvisoryModel      = "Pro/deepseek-ai/DeepSeek-V3.2"
	defaultAdvisoryTemp       = 0.1
	defaultAdvisoryMaxTokens  = 800
	defaultAdvisoryTimeout    = 90
	defaultAdvisoryAttempts   = 1
	defaultAdvisoryRetryDelay = 2
	defaultBreakerThreshold   = 3
	defaultBreakerCooldown    = 300
	defaultValuationURL       = "https://push2his.eastmoney.com"
	defaultValuationTimeout   = 30
	defaultValuationAttempts  = 2
	defaultValuationDelay     = 3
	defaultReportDir          = "reports"
	defaultReportTitle        = "鹊知风 · 每日信号"
	defaultScheduleAt         = "14:45"
)

// DefaultIndexMap 把指数中文名映射为行情源代码（sh/sz 前缀为 A 股，hk/us. 前缀暂不估值）。
func DefaultIndexMap() map[string]string {
	return map[string]string{
		"沪深300":  "sh000300",
		"中证500":  "sh000905",
		"创业板指":   "sz399006",
		"科创50":   "sh000688",
		"恒生科技":   "hkHSTECH",
		"中证红利":   "sz399922",
		"中证煤炭":   "sz399998",
		"全指证券公司": "sz399975",
		"中华半导体":  "sz399989",
		"纳斯达克100": "us.NDX",
	}
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Journal.applyDefaults(keys)
	c.Advisory.applyDefaults(keys)
	c.Valuation.applyDefaults(keys)
	c.Report.applyDefaults(keys)
	c.Notify.Telegram.applyDefaults()
	c.Schedule.applyDefaults(keys)
	for i := range c.Funds {
		c.Funds[i] = c.Funds[i].Normalize()
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.timezone", &a.Timezone, defaultAppTimezone),
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "engine.workers",
			need:  func() bool { return e.Workers <= 0 },
			apply: func() { e.Workers = defaultEngineWorkers },
		},
		fieldDefault{
			key:   "engine.base_invest_amount",
			need:  func() bool { return e.BaseInvestAmount <= 0 },
			apply: func() { e.BaseInvestAmount = defaultBaseInvestAmount },
		},
		fieldDefault{
			key:   "engine.max_daily_invest",
			need:  func() bool { return e.MaxDailyInvest <= 0 },
			apply: func() { e.MaxDailyInvest = defaultMaxDailyInvest },
		},
		fieldDefault{
			key:   "engine.lookup_timeout_seconds",
			need:  func() bool { return e.LookupTimeoutSeconds <= 0 },
			apply: func() { e.LookupTimeoutSeconds = defaultLookupTimeout },
		},
		fieldDefault{
			key:   "engine.min_hold_days",
			need:  func() bool { return e.MinHoldDays <= 0 },
			apply: func() { e.MinHoldDays = defaultMinHoldDays },
		},
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("data.cache_dir", &d.CacheDir, defaultDataCacheDir),
		stringFieldDefault("data.news_dir", &d.NewsDir, defaultDataNewsDir),
	)
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys, stringFieldDefault("ledger.backend", &l.Backend, defaultLedgerBackend))
	l.Backend = strings.ToLower(strings.TrimSpace(l.Backend))
	if strings.TrimSpace(l.Path) == "" {
		if l.Backend == "sqlite" {
			l.Path = defaultLedgerSQLitePath
		} else {
			l.Path = defaultLedgerJSONPath
		}
	}
}

func (j *JournalConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("journal.enabled", &j.Enabled, true),
		stringFieldDefault("journal.path", &j.Path, defaultJournalPath),
	)
}

func (a *AdvisoryConfig) applyDefaults(keys keySet) {
	// 与旧版部署保持兼容：密钥与网关可以直接来自环境变量。
	if strings.TrimSpace(a.APIKey) == "" {
		a.APIKey = os.Getenv("LLM_API_KEY")
	}
	if strings.TrimSpace(a.APIURL) == "" {
		a.APIURL = os.Getenv("LLM_BASE_URL")
	}
	applyFieldDefaults(keys,
		boolFieldDefault("advisory.enabled", &a.Enabled, strings.TrimSpace(a.APIKey) != ""),
		stringFieldDefault("advisory.api_url", &a.APIURL, defaultAdvisoryURL),
		stringFieldDefault("advisory.model", &a.Model, defaultAdvisoryModel),
		fieldDefault{
			key:   "advisory.temperature",
			need:  func() bool { return a.Temperature <= 0 },
			apply: func() { a.Temperature = defaultAdvisoryTemp },
		},
		fieldDefault{
			key:   "advisory.max_tokens",
			need:  func() bool { return a.MaxTokens <= 0 },
			apply: func() { a.MaxTokens = defaultAdvisoryMaxTokens },
		},
		fieldDefault{
			key:   "advisory.timeout_seconds",
			need:  func() bool { return a.TimeoutSeconds <= 0 },
			apply: func() { a.TimeoutSeconds = defaultAdvisoryTimeout },
		},
		fieldDefault{
			key:   "advisory.attempts",
			need:  func() bool { return a.Attempts <= 0 },
			apply: func() { a.Attempts = defaultAdvisoryAttempts },
		},
		fieldDefault{
			key:   "advisory.retry_delay_seconds",
			need:  func() bool { return a.RetryDelaySeconds <= 0 },
			apply: func() { a.RetryDelaySeconds = defaultAdvisoryRetryDelay },
		},
		fieldDefault{
			key:   "advisory.breaker_threshold",
			need:  func() bool { return a.BreakerThreshold <= 0 },
			apply: func() { a.BreakerThreshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "advisory.breaker_cooldown_seconds",
			need:  func() bool { return a.BreakerCooldownSeconds <= 0 },
			apply: func() { a.BreakerCooldownSeconds = defaultBreakerCooldown },
		},
	)
}

func (v *ValuationConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("valuation.enabled", &v.Enabled, true),
		stringFieldDefault("valuation.base_url", &v.BaseURL, defaultValuationURL),
		fieldDefault{
			key:   "valuation.timeout_seconds",
			need:  func() bool { return v.TimeoutSeconds <= 0 },
			apply: func() { v.TimeoutSeconds = defaultValuationTimeout },
		},
		fieldDefault{
			key:   "valuation.attempts",
			need:  func() bool { return v.Attempts <= 0 },
			apply: func() { v.Attempts = defaultValuationAttempts },
		},
		fieldDefault{
			key:   "valuation.retry_delay_seconds",
			need:  func() bool { return v.RetryDelaySeconds <= 0 },
			apply: func() { v.RetryDelaySeconds = defaultValuationDelay },
		},
	)
	if len(v.Indices) == 0 {
		v.Indices = DefaultIndexMap()
	}
}

func (r *ReportConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("report.dir", &r.Dir, defaultReportDir),
		stringFieldDefault("report.title", &r.Title, defaultReportTitle),
	)
}

func (t *TelegramConfig) applyDefaults() {
	if strings.TrimSpace(t.BotToken) == "" {
		t.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if strings.TrimSpace(t.ChatID) == "" {
		t.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("schedule.at", &s.At, defaultScheduleAt),
		boolFieldDefault("schedule.skip_weekends", &s.SkipWeekends, true),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

// boolFieldDefault 仅在配置文件未显式出现该键时生效。
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil },
		apply: func() { *target = def },
	}
}
