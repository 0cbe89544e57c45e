package config

import "strings"

// Config 是 magpie 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Engine    EngineConfig    `toml:"engine"`
	Data      DataConfig      `toml:"data"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Journal   JournalConfig   `toml:"journal"`
	Advisory  AdvisoryConfig  `toml:"advisory"`
	Valuation ValuationConfig `toml:"valuation"`
	Report    ReportConfig    `toml:"report"`
	Notify    NotifyConfig    `toml:"notify"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	// FundsPath 指向可热更新的标的清单；为空时使用内联 funds。
	FundsPath string `toml:"funds_path"`
	Funds     []Fund `toml:"funds"`
}

type AppConfig struct {
	Env        string `toml:"env"`
	LogLevel   string `toml:"log_level"`
	LogFormat  string `toml:"log_format"`
	LogPath    string `toml:"log_path"`
	LLMLogPath string `toml:"llm_log_path"`
	HTTPAddr   string `toml:"http_addr"`
	Timezone   string `toml:"timezone"`
}

// EngineConfig 控制单轮决策的并发度与资金参数。
type EngineConfig struct {
	Workers              int     `toml:"workers"`
	BaseInvestAmount     float64 `toml:"base_invest_amount"` // 单档基准定投额
	MaxDailyInvest       float64 `toml:"max_daily_invest"`   // 单标的单日买入上限
	LookupTimeoutSeconds int     `toml:"lookup_timeout_seconds"`
	MinHoldDays          int     `toml:"min_hold_days"`
}

type DataConfig struct {
	CacheDir string `toml:"cache_dir"`
	NewsDir  string `toml:"news_dir"` // 新闻缓存目录，文件名 news_<日期>.jsonl
}

// LedgerConfig 选择账本持久化后端：json（整文件替换）或 sqlite（gorm）。
type LedgerConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// AdvisoryConfig 描述投委会模型（OpenAI 兼容接口）。
type AdvisoryConfig struct {
	Enabled                bool    `toml:"enabled"`
	APIURL                 string  `toml:"api_url"`
	APIKey                 string  `toml:"api_key"`
	Model                  string  `toml:"model"`
	Temperature            float64 `toml:"temperature"`
	MaxTokens              int     `toml:"max_tokens"`
	TimeoutSeconds         int     `toml:"timeout_seconds"`
	Attempts               int     `toml:"attempts"`
	RetryDelaySeconds      int     `toml:"retry_delay_seconds"`
	BreakerThreshold       int     `toml:"breaker_threshold"`
	BreakerCooldownSeconds int     `toml:"breaker_cooldown_seconds"`
}

// ValuationConfig 描述指数历史行情源与指数名映射。
type ValuationConfig struct {
	Enabled           bool              `toml:"enabled"`
	BaseURL           string            `toml:"base_url"`
	TimeoutSeconds    int               `toml:"timeout_seconds"`
	Attempts          int               `toml:"attempts"`
	RetryDelaySeconds int               `toml:"retry_delay_seconds"`
	Indices           map[string]string `toml:"indices"`
}

type ReportConfig struct {
	Dir         string `toml:"dir"`
	Title       string `toml:"title"`
	SnapshotPNG bool   `toml:"snapshot_png"`
	WriteYAML   bool   `toml:"write_yaml"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// ScheduleConfig 控制 serve 模式下每日定时运行的时刻（本地交易所时区）。
type ScheduleConfig struct {
	At             string `toml:"at"`
	RunImmediately bool   `toml:"run_immediately"`
	SkipWeekends   bool   `toml:"skip_weekends"`
}

// Fund 描述单个被跟踪的标的。
type Fund struct {
	Code         string `toml:"code" mapstructure:"code" yaml:"code"`
	Name         string `toml:"name" mapstructure:"name" yaml:"name"`
	IndexName    string `toml:"index_name" mapstructure:"index_name" yaml:"index_name"`
	StrategyType string `toml:"strategy_type" mapstructure:"strategy_type" yaml:"strategy_type"`
}

// Normalize 清理空白并把策略类型统一为小写。
func (f Fund) Normalize() Fund {
	f.Code = strings.TrimSpace(f.Code)
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		f.Name = f.Code
	}
	f.IndexName = strings.TrimSpace(f.IndexName)
	f.StrategyType = strings.ToLower(strings.TrimSpace(f.StrategyType))
	return f
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
