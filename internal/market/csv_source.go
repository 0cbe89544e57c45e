package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"magpie/internal/logger"
)

// ErrNoData 表示本地缓存缺失或为空。
var ErrNoData = errors.New("no cached price data")

// ErrMalformed 表示缓存文件存在但格式不可用（缺列、CSV 语法错误）。
// 它包裹 ErrNoData，调用方按数据不足处理；真正的读盘错误不包裹。
var ErrMalformed = fmt.Errorf("%w: malformed price history", ErrNoData)

var headerAliases = map[string]string{
	"date":       "date",
	"日期":         "date",
	"open":       "open",
	"开盘":         "open",
	"high":       "high",
	"最高":         "high",
	"low":        "low",
	"最低":         "low",
	"close":      "close",
	"收盘":         "close",
	"volume":     "volume",
	"成交量":        "volume",
	"amount":     "amount",
	"成交额":        "amount",
	"fetch_time": "fetch_time",
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC3339,
}

// CSVSource 从采集任务写入的 `<dir>/<code>.csv` 读取日线（只读模式）。
type CSVSource struct {
	Dir      string
	Location *time.Location
	nowFn    func() time.Time
}

func NewCSVSource(dir string, loc *time.Location) *CSVSource {
	if loc == nil {
		loc = ChinaStandardTime
	}
	return &CSVSource{Dir: dir, Location: loc, nowFn: time.Now}
}

func (s *CSVSource) History(ctx context.Context, code string) ([]PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, code+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warnf("[market] 本地缓存缺失: %s，请先运行采集任务", code)
			return nil, fmt.Errorf("%w: %s", ErrNoData, path)
		}
		return nil, err
	}
	defer f.Close()
	bars, err := ParseCSV(f, s.Location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, path)
	}
	s.auditFreshness(code, bars[len(bars)-1].Date)
	return bars, nil
}

// auditFreshness 仅在交易时间内对滞后数据告警。
func (s *CSVSource) auditFreshness(code string, last time.Time) {
	now := s.nowFn().In(s.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.Location)
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, s.Location)
	switch {
	case !lastDay.Before(today):
		logger.Infof("[market] %s 最新日期 %s | 数据已更新至今日", code, lastDay.Format("2006-01-02"))
	case IsTradingHours(now):
		gap := int(today.Sub(lastDay).Hours() / 24)
		logger.Warnf("[market] %s 最新日期 %s | 数据滞后 %d 天", code, lastDay.Format("2006-01-02"), gap)
	default:
		logger.Infof("[market] %s 最新日期 %s | 历史数据就绪", code, lastDay.Format("2006-01-02"))
	}
}

// ParseCSV 解析带表头的日线 CSV；列顺序不限，支持中英文列名。
// 无法解析的数值记为 NaN，由技术面引擎统一补齐。
func ParseCSV(r io.Reader, loc *time.Location) ([]PriceBar, error) {
	if loc == nil {
		loc = ChinaStandardTime
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, classify(err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[key]; ok {
			if _, dup := cols[alias]; !dup {
				cols[alias] = i
			}
		}
	}
	if _, ok := cols["date"]; !ok {
		return nil, fmt.Errorf("%w: missing date column", ErrMalformed)
	}
	if _, ok := cols["close"]; !ok {
		return nil, fmt.Errorf("%w: missing close column", ErrMalformed)
	}
	var bars []PriceBar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, classify(err))
		}
		date, ok := parseTime(field(rec, cols, "date"), loc)
		if !ok {
			logger.Debugf("[market] skip line %d: bad date %q", line, field(rec, cols, "date"))
			continue
		}
		bar := PriceBar{
			Date:   time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc),
			Open:   number(rec, cols, "open"),
			High:   number(rec, cols, "high"),
			Low:    number(rec, cols, "low"),
			Close:  number(rec, cols, "close"),
			Volume: number(rec, cols, "volume"),
			Amount: number(rec, cols, "amount"),
		}
		if ft, ok := parseTime(field(rec, cols, "fetch_time"), loc); ok {
			bar.FetchedAt = ft
		}
		bars = append(bars, bar)
	}
	return Normalize(bars), nil
}

// classify 把 CSV 语法错误归入 ErrMalformed，其余错误原样返回。
func classify(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return err
}

func field(rec []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func number(rec []string, cols map[string]int, name string) float64 {
	raw := field(rec, cols, name)
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseTime(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}
