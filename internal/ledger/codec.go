package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"magpie/internal/pkg/convert"

	"github.com/tidwall/gjson"
)

// ErrCorrupt 表示账本文档无法解析。
var ErrCorrupt = errors.New("ledger document corrupt")

var requiredFields = []string{"name", "shares", "cost", "held_days", "history"}

// decodeDocument 解析账本文档；缺失或类型错误的字段以默认值补齐，healed 表示发生过补齐。
func decodeDocument(raw []byte) (doc Document, healed bool, err error) {
	doc = make(Document)
	if len(raw) == 0 {
		return doc, false, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, false, fmt.Errorf("%w: invalid json", ErrCorrupt)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, false, fmt.Errorf("%w: root must be an object", ErrCorrupt)
	}
	root.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			err = fmt.Errorf("%w: position %s is not an object", ErrCorrupt, key.String())
			return false
		}
		pos, fixed := decodePosition(key.String(), value)
		doc[key.String()] = pos
		healed = healed || fixed
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return doc, healed, nil
}

func decodePosition(code string, v gjson.Result) (Position, bool) {
	healed := false
	for _, f := range requiredFields {
		if !v.Get(f).Exists() {
			healed = true
		}
	}
	pos := Position{Name: v.Get("name").String()}
	if pos.Name == "" {
		pos.Name = code
	}
	if n, ok := convert.ToFloat64(v.Get("shares").Value()); ok && n >= 0 {
		pos.Shares = n
	} else if v.Get("shares").Exists() {
		healed = true
	}
	if n, ok := convert.ToFloat64(v.Get("cost").Value()); ok && n >= 0 {
		pos.Cost = n
	} else if v.Get("cost").Exists() {
		healed = true
	}
	if n, ok := convert.ToInt(v.Get("held_days").Value()); ok && n >= 0 {
		pos.HeldDays = n
	} else if v.Get("held_days").Exists() {
		healed = true
	}
	pos.History = []TradeRecord{}
	v.Get("history").ForEach(func(_, rec gjson.Result) bool {
		side := Side(rec.Get("s").String())
		if side != SideSell {
			side = SideBuy
		}
		pos.History = append(pos.History, TradeRecord{
			Date:   rec.Get("date").String(),
			Price:  rec.Get("price").Float(),
			Side:   side,
			Amount: rec.Get("amt").Int(),
		})
		return true
	})
	if pos.Shares == 0 && (pos.Cost != 0 || pos.HeldDays != 0) {
		pos.Cost, pos.HeldDays = 0, 0
		healed = true
	}
	return pos, healed
}

func encodeDocument(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	return json.MarshalIndent(doc, "", "  ")
}
