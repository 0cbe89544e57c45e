package ledger

// Side 是成交方向：B 买入、S 卖出。
type Side string

const (
	SideBuy  Side = "B"
	SideSell Side = "S"
)

// MaxHistory 是每个标的保留的最近成交条数。
const MaxHistory = 10

// TradeRecord 是一条成交记录；卖出的 Amount 为负数。
type TradeRecord struct {
	Date   string  `json:"date" yaml:"date"`
	Price  float64 `json:"price" yaml:"price"`
	Side   Side    `json:"s" yaml:"s"`
	Amount int64   `json:"amt" yaml:"amt"`
}

// Position 是单个标的的持仓。Shares 为 0 时 Cost 与 HeldDays 也为 0。
type Position struct {
	Name     string        `json:"name" yaml:"name"`
	Shares   float64       `json:"shares" yaml:"shares"`
	Cost     float64       `json:"cost" yaml:"cost"`
	HeldDays int           `json:"held_days" yaml:"held_days"`
	History  []TradeRecord `json:"history" yaml:"history"`
}

// Clone 返回深拷贝。
func (p Position) Clone() Position {
	out := p
	out.History = append([]TradeRecord{}, p.History...)
	return out
}

// MarketValue 按给定价格计算持仓市值。
func (p Position) MarketValue(price float64) float64 {
	return p.Shares * price
}

// UnrealizedPnL 返回浮动盈亏与收益率；空仓或成本为 0 时均为 0。
func (p Position) UnrealizedPnL(price float64) (float64, float64) {
	if p.Shares <= 0 || p.Cost <= 0 || price <= 0 {
		return 0, 0
	}
	pnl := (price - p.Cost) * p.Shares
	return pnl, (price - p.Cost) / p.Cost
}

// Document 是账本的持久化形态：标的代码 → 持仓。
type Document map[string]Position

func (d Document) clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v.Clone()
	}
	return out
}
