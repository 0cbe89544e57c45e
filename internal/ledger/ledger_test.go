package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"magpie/internal/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJSON(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.json")
	store, err := NewJSONStore(path)
	require.NoError(t, err)
	l, err := Open(store, time.UTC)
	require.NoError(t, err)
	l.nowFn = func() time.Time { return time.Date(2024, 3, 5, 14, 50, 0, 0, time.UTC) }
	return l, path
}

func TestLedger_BuyThenBuyWeightsCost(t *testing.T) {
	l, _ := openJSON(t)

	require.NoError(t, l.RecordTrade("510300", "沪深300ETF", 1000, 10, false))
	pos := l.Position("510300")
	assert.Equal(t, 100.0, pos.Shares)
	assert.Equal(t, 10.0, pos.Cost)
	assert.Equal(t, 1, pos.HeldDays)

	require.NoError(t, l.RecordTrade("510300", "沪深300ETF", 500, 20, false))
	pos = l.Position("510300")
	assert.Equal(t, 125.0, pos.Shares)
	assert.Equal(t, 12.0, pos.Cost)
	assert.Equal(t, 1, pos.HeldDays)
	require.Len(t, pos.History, 2)
	assert.Equal(t, TradeRecord{Date: "2024-03-05", Price: 20, Side: SideBuy, Amount: 500}, pos.History[1])
}

func TestLedger_FullSellResets(t *testing.T) {
	l, _ := openJSON(t)
	require.NoError(t, l.RecordTrade("510300", "", 1000, 10, false))
	require.NoError(t, l.RecordTrade("510300", "", 500, 20, false))
	require.NoError(t, l.AdvanceDay())

	require.NoError(t, l.RecordTrade("510300", "", 125*20, 20, true))
	pos := l.Position("510300")
	assert.Equal(t, 0.0, pos.Shares)
	assert.Equal(t, 0.0, pos.Cost)
	assert.Equal(t, 0, pos.HeldDays)
	assert.Equal(t, int64(-2500), pos.History[len(pos.History)-1].Amount)
	assert.Equal(t, SideSell, pos.History[len(pos.History)-1].Side)
}

func TestLedger_OversellClampsToHeld(t *testing.T) {
	l, _ := openJSON(t)
	require.NoError(t, l.RecordTrade("x", "X", 300, 3, false))
	require.NoError(t, l.RecordTrade("x", "X", 10000, 3, true))
	pos := l.Position("x")
	assert.Equal(t, 0.0, pos.Shares)
	assert.Equal(t, int64(-300), pos.History[1].Amount)
}

func TestLedger_PartialSellKeepsCost(t *testing.T) {
	l, _ := openJSON(t)
	require.NoError(t, l.RecordTrade("x", "X", 1000, 10, false))
	require.NoError(t, l.RecordTrade("x", "X", 300, 15, true))
	pos := l.Position("x")
	assert.Equal(t, 80.0, pos.Shares)
	assert.Equal(t, 10.0, pos.Cost)
	assert.Equal(t, 1, pos.HeldDays)
}

func TestLedger_NoOpOnBadInput(t *testing.T) {
	l, path := openJSON(t)
	require.NoError(t, l.RecordTrade("x", "X", 1000, 0, false))
	require.NoError(t, l.RecordTrade("x", "X", 0, 10, false))
	require.NoError(t, l.RecordTrade("x", "X", -5, 10, true))
	assert.Empty(t, l.Positions())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no mutation, no write")
}

func TestLedger_PositionIsDefensiveCopy(t *testing.T) {
	l, _ := openJSON(t)
	unknown := l.Position("nope")
	assert.Equal(t, 0.0, unknown.Shares)
	assert.Equal(t, 0, unknown.HeldDays)

	require.NoError(t, l.RecordTrade("x", "X", 1000, 10, false))
	a := l.Position("x")
	b := l.Position("x")
	assert.Equal(t, a, b)
	a.History[0].Amount = 1
	a.Shares = 7
	assert.Equal(t, b, l.Position("x"))
}

func TestLedger_HistoryIsCapped(t *testing.T) {
	l, _ := openJSON(t)
	for i := 0; i < 15; i++ {
		require.NoError(t, l.RecordTrade("x", "X", float64(100+i), 1.23456, false))
	}
	pos := l.Position("x")
	require.Len(t, pos.History, MaxHistory)
	assert.Equal(t, int64(105), pos.History[0].Amount)
	assert.Equal(t, 1.235, pos.History[0].Price)
}

func TestLedger_AdvanceDaySkipsEmpty(t *testing.T) {
	l, _ := openJSON(t)
	require.NoError(t, l.RecordTrade("a", "A", 1000, 10, false))
	require.NoError(t, l.RecordTrade("b", "B", 1000, 10, false))
	require.NoError(t, l.RecordTrade("b", "B", 1000, 10, true))
	require.NoError(t, l.AdvanceDay())
	require.NoError(t, l.AdvanceDay())
	assert.Equal(t, 3, l.Position("a").HeldDays)
	assert.Equal(t, 0, l.Position("b").HeldDays)
}

func TestLedger_Apply(t *testing.T) {
	l, _ := openJSON(t)
	require.NoError(t, l.Apply("x", "X", 2, decision.TradeInstruction{Action: decision.ActionBuy, BuyAmount: 1000}))
	assert.Equal(t, 500.0, l.Position("x").Shares)
	require.NoError(t, l.Apply("x", "X", 2, decision.TradeInstruction{Action: decision.ActionHold}))
	assert.Len(t, l.Position("x").History, 1)
	require.NoError(t, l.Apply("x", "X", 2, decision.TradeInstruction{Action: decision.ActionSell, SellValue: 500}))
	assert.Equal(t, 250.0, l.Position("x").Shares)
	assert.Equal(t, decision.Holding{Shares: 250, Cost: 2, HeldDays: 1}, l.Position("x").Holding())
}

func TestLedger_InvariantAfterRandomTrades(t *testing.T) {
	l, _ := openJSON(t)
	prices := []float64{1.1, 0.97, 1.333, 2.5, 1.01}
	for i := 0; i < 60; i++ {
		price := prices[i%len(prices)]
		sell := i%3 == 2
		amount := float64(100 + 37*i)
		require.NoError(t, l.RecordTrade("x", "X", amount, price, sell))
		if i%7 == 0 {
			require.NoError(t, l.AdvanceDay())
		}
		pos := l.Position("x")
		assert.GreaterOrEqual(t, pos.Shares, 0.0)
		if pos.Shares == 0 {
			assert.Equal(t, 0.0, pos.Cost)
			assert.Equal(t, 0, pos.HeldDays)
		}
	}
}

func TestLedger_PersistsAndReloads(t *testing.T) {
	l, path := openJSON(t)
	require.NoError(t, l.RecordTrade("510300", "沪深300ETF", 1000, 10, false))

	store, err := NewJSONStore(path)
	require.NoError(t, err)
	again, err := Open(store, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, l.Positions(), again.Positions())
}

func TestLedger_SelfHealsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"510300": {"name": "沪深300ETF", "shares": 100}}`), 0o644))

	store, err := NewJSONStore(path)
	require.NoError(t, err)
	l, err := Open(store, time.UTC)
	require.NoError(t, err)

	pos := l.Position("510300")
	assert.Equal(t, 100.0, pos.Shares)
	assert.Equal(t, 0.0, pos.Cost)
	assert.NotNil(t, pos.History)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"held_days": 0`)
	assert.Contains(t, string(raw), `"history": []`)
}

func TestLedger_CorruptDocumentResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"510300": `), 0o644))
	store, err := NewJSONStore(path)
	require.NoError(t, err)
	l, err := Open(store, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, l.Positions())
}

func TestLedger_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	l, _ := openJSON(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("x")
			defer unlock()
			_ = l.RecordTrade("x", "X", 10, 1, false)
		}()
	}
	wg.Wait()
	assert.Equal(t, 200.0, l.Position("x").Shares)
}

type flakyStore struct {
	failing bool
	saved   Document
}

func (s *flakyStore) Load() (Document, bool, error) { return Document{}, false, nil }

func (s *flakyStore) Save(doc Document) error {
	if s.failing {
		return errors.New("disk full")
	}
	s.saved = doc.clone()
	return nil
}

func (s *flakyStore) Close() error { return nil }

func TestLedger_FailedSaveLeavesStateUntouched(t *testing.T) {
	store := &flakyStore{}
	l, err := Open(store, time.UTC)
	require.NoError(t, err)
	require.NoError(t, l.RecordTrade("159915", "Y", 500, 5, false))

	store.failing = true
	err = l.RecordTrade("510300", "x", 1000, 10, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0.0, l.Position("510300").Shares)
	assert.Empty(t, l.Position("510300").History)

	require.Error(t, l.AdvanceDay())
	assert.Equal(t, 1, l.Position("159915").HeldDays)

	store.failing = false
	require.NoError(t, l.AdvanceDay())
	assert.NotContains(t, store.saved, "510300")
	assert.Equal(t, 2, store.saved["159915"].HeldDays)
	assert.Equal(t, 100.0, store.saved["159915"].Shares)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	doc, healed, err := store.Load()
	require.NoError(t, err)
	assert.False(t, healed)
	assert.Empty(t, doc)

	l, err := Open(store, time.UTC)
	require.NoError(t, err)
	require.NoError(t, l.RecordTrade("515080", "红利ETF", 1000, 10, false))
	require.NoError(t, l.RecordTrade("515080", "红利ETF", 500, 20, false))

	doc, _, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 125.0, doc["515080"].Shares)
	assert.Equal(t, 12.0, doc["515080"].Cost)
}
