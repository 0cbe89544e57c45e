// Package ledger 维护每个标的的持仓、加权成本、持有天数与最近成交。
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"magpie/internal/decision"
	"magpie/internal/logger"

	"github.com/shopspring/decimal"
)

// dustShares 以下的剩余份额视为清仓，避免浮点残差破坏空仓不变量。
const dustShares = 1e-6

// Ledger 是持仓的唯一写入者。
type Ledger struct {
	store Store
	loc   *time.Location
	nowFn func() time.Time

	mu        sync.RWMutex
	positions Document

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// Open 从 store 加载账本。文档损坏时重置为空账本并记录错误，不中断启动。
func Open(store Store, loc *time.Location) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: store is nil")
	}
	if loc == nil {
		loc = time.Local
	}
	l := &Ledger{
		store: store,
		loc:   loc,
		nowFn: time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	doc, healed, err := store.Load()
	switch {
	case errors.Is(err, ErrCorrupt):
		logger.Errorf("[ledger] 账本加载失败: %v，重置为空账本", err)
		doc = Document{}
	case err != nil:
		return nil, fmt.Errorf("ledger load: %w", err)
	}
	l.positions = doc
	if healed {
		if err := l.persist(doc); err != nil {
			return nil, err
		}
		logger.Infof("[ledger] 检测到旧版账本数据，已自动补全缺失字段")
	}
	return l, nil
}

// Position 返回持仓副本；未知标的返回零值持仓。
func (l *Ledger) Position(id string) Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[id]
	if !ok {
		return Position{History: []TradeRecord{}}
	}
	return pos.Clone()
}

// Positions 返回全部持仓的快照。
func (l *Ledger) Positions() Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.positions.clone()
}

// Codes 返回按代码排序的标的列表。
func (l *Ledger) Codes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.positions))
	for code := range l.positions {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Lock 获取单个标的的互斥锁，覆盖「读持仓 → 决策 → 写持仓」整个区间。
func (l *Ledger) Lock(id string) func() {
	l.lockMu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.lockMu.Unlock()
	m.Lock()
	return m.Unlock
}

// RecordTrade 记录一笔买入（金额）或卖出（市值）并立即持久化。
// 价格或金额不为正（含 NaN）时不做任何修改。
func (l *Ledger) RecordTrade(id, name string, amountOrValue, price float64, isSell bool) error {
	if !(price > 0) || !(amountOrValue > 0) || math.IsInf(price, 0) || math.IsInf(amountOrValue, 0) {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[id]
	if !ok {
		pos = Position{Name: name, History: []TradeRecord{}}
	}
	if name != "" {
		pos.Name = name
	}
	pos = pos.Clone()

	px := decimal.NewFromFloat(price)
	rec := TradeRecord{
		Date:  l.nowFn().In(l.loc).Format("2006-01-02"),
		Price: px.Round(3).InexactFloat64(),
		Side:  SideBuy,
	}
	change := decimal.NewFromFloat(amountOrValue).Div(px)
	shares := decimal.NewFromFloat(pos.Shares)

	if isSell {
		sold := decimal.Min(shares, change)
		remaining := shares.Sub(sold)
		if remaining.LessThan(decimal.NewFromFloat(dustShares)) {
			remaining = decimal.Zero
		}
		pos.Shares = remaining.InexactFloat64()
		rec.Side = SideSell
		rec.Amount = -sold.Mul(px).IntPart()
		if pos.Shares == 0 {
			pos.Cost = 0
			pos.HeldDays = 0
		}
	} else {
		total := shares.Add(change)
		if total.IsPositive() {
			invested := shares.Mul(decimal.NewFromFloat(pos.Cost)).Add(decimal.NewFromFloat(amountOrValue))
			pos.Cost = invested.Div(total).Round(4).InexactFloat64()
		}
		pos.Shares = total.InexactFloat64()
		rec.Amount = decimal.NewFromFloat(amountOrValue).IntPart()
		if pos.HeldDays == 0 {
			pos.HeldDays = 1
		}
	}
	pos.History = append(pos.History, rec)
	if n := len(pos.History); n > MaxHistory {
		pos.History = pos.History[n-MaxHistory:]
	}
	next := l.positions.clone()
	next[id] = pos
	if err := l.persist(next); err != nil {
		return err
	}
	l.positions = next
	action := "买入"
	if isSell {
		action = "卖出"
	}
	logger.Infof("[ledger] 账本更新 %s: %s | 份额 %.2f | 最新成本: %.3f", pos.Name, action, pos.Shares, pos.Cost)
	return nil
}

// Apply 把决策指令落到账本；观望指令不做修改。
func (l *Ledger) Apply(id, name string, price float64, ins decision.TradeInstruction) error {
	switch ins.Action {
	case decision.ActionBuy:
		return l.RecordTrade(id, name, ins.BuyAmount, price, false)
	case decision.ActionSell:
		return l.RecordTrade(id, name, ins.SellValue, price, true)
	default:
		return nil
	}
}

// AdvanceDay 为所有非空仓持仓的持有天数加一，每轮决策前调用一次。
func (l *Ledger) AdvanceDay() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	advanced := 0
	next := l.positions.clone()
	for code, pos := range next {
		if pos.Shares > 0 {
			pos.HeldDays++
			next[code] = pos
			advanced++
		}
	}
	if err := l.persist(next); err != nil {
		return err
	}
	l.positions = next
	logger.Debugf("[ledger] 持有天数推进: %d 个持仓", advanced)
	return nil
}

// Holding 返回决策引擎需要的持仓快照。
func (p Position) Holding() decision.Holding {
	return decision.Holding{Shares: p.Shares, Cost: p.Cost, HeldDays: p.HeldDays}
}

// Close 关闭底层存储。
func (l *Ledger) Close() error {
	return l.store.Close()
}

// persist 保存候选文档；调用方仅在保存成功后替换内存状态。
func (l *Ledger) persist(doc Document) error {
	if err := l.store.Save(doc); err != nil {
		logger.Errorf("[ledger] 账本保存失败: %v", err)
		return fmt.Errorf("ledger save: %w", err)
	}
	return nil
}
