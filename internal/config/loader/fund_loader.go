package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"magpie/internal/config"
	"magpie/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FileConfig 是标的清单文件结构。
type FileConfig struct {
	Funds []config.Fund `mapstructure:"funds"`
}

// FundSnapshot 对外暴露的只读快照。
type FundSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Funds    []config.Fund
}

// ChangeListener 在清单变更时被调用。
type ChangeListener func(FundSnapshot)

// FundLoader 从 YAML/JSON 文件加载标的清单，并监听热更新；
// 新清单从下一轮决策开始生效，进行中的一轮不受影响。
type FundLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  FundSnapshot
	listeners []ChangeListener
}

// NewFundLoader 读取清单文件；watch=true 时开始监听 FS 事件。
func NewFundLoader(path string, watch bool) (*FundLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("fund loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read fund catalog failed: %w", err)
	}
	l := &FundLoader{path: path, v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	if watch {
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := l.reload(); err != nil {
				// 保留上一份有效清单
				logger.Errorf("fund catalog reload failed (%s): %v", evt.Name, err)
				return
			}
			l.notify()
		})
		v.WatchConfig()
	}
	return l, nil
}

// Funds 返回当前清单的副本。
func (l *FundLoader) Funds() []config.Fund {
	return l.Snapshot().Funds
}

// Snapshot 返回当前快照（深拷贝）。
func (l *FundLoader) Snapshot() FundSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe 注册监听器，仅在后续变更时回调。
func (l *FundLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

func (l *FundLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("fund listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *FundLoader) reload() error {
	var fileCfg FileConfig
	if err := l.v.Unmarshal(&fileCfg); err != nil {
		return fmt.Errorf("parse fund catalog failed: %w", err)
	}
	funds := make([]config.Fund, 0, len(fileCfg.Funds))
	for _, f := range fileCfg.Funds {
		funds = append(funds, f.Normalize())
	}
	if err := config.ValidateFunds(funds); err != nil {
		return err
	}
	l.mu.Lock()
	l.snapshot = FundSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Funds:    funds,
	}
	l.mu.Unlock()
	logger.Infof("Fund loader loaded %d funds from %s", len(funds), filepath.Base(l.path))
	return nil
}

func cloneSnapshot(src FundSnapshot) FundSnapshot {
	dst := src
	dst.Funds = append([]config.Fund(nil), src.Funds...)
	return dst
}

// Static 把固定清单包装成与 FundLoader 相同的读取接口。
type Static []config.Fund

func (s Static) Funds() []config.Fund {
	return append([]config.Fund(nil), s...)
}
