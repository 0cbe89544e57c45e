package market

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_EnglishHeaders(t *testing.T) {
	body := `date,open,high,low,close,volume,amount,fetch_time
2024-03-05,1.0,1.2,0.9,1.1,1000,1100,2024-03-05 10:30:00
2024-03-04,1.0,1.1,0.9,1.0,,900,2024-03-04 15:10:00
2024-03-05,1.0,1.3,0.9,1.2,2000,2400,2024-03-05 11:00:00
`
	bars, err := ParseCSV(strings.NewReader(body), ChinaStandardTime)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, 4, bars[0].Date.Day())
	assert.True(t, math.IsNaN(bars[0].Volume), "empty volume should read as a gap")
	assert.Equal(t, 900.0, bars[0].Amount)

	// 同一日期以最后一行为准
	assert.Equal(t, 1.2, bars[1].Close)
	assert.Equal(t, 2000.0, bars[1].Volume)
	assert.Equal(t, 11, bars[1].FetchedAt.Hour())
}

func TestParseCSV_ChineseHeadersWithoutAmount(t *testing.T) {
	body := "日期,开盘,收盘,最高,最低,成交量\n2024-01-02,3.1,3.2,3.3,3.0,12345\n"
	bars, err := ParseCSV(strings.NewReader(body), nil)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 3.2, bars[0].Close)
	assert.Equal(t, 3.3, bars[0].High)
	assert.True(t, math.IsNaN(bars[0].Amount))
	assert.True(t, bars[0].FetchedAt.IsZero())
}

func TestParseCSV_RequiresCloseColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,open\n2024-01-02,1\n"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = ParseCSV(strings.NewReader("date,close\n2024-01-02,\"1\n"), nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCSVSource_History(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "510300.csv"),
		[]byte("date,close,volume\n2024-01-02,3.5,100\n2024-01-03,3.6,120\n"), 0o644))

	src := NewCSVSource(dir, nil)
	src.nowFn = func() time.Time { return time.Date(2024, 1, 4, 10, 0, 0, 0, ChinaStandardTime) }

	bars, err := src.History(context.Background(), "510300")
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	_, err = src.History(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNoData))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "159915.csv"),
		[]byte("date,open,high,low,volume\n2024-01-02,1,1,1,100\n"), 0o644))
	_, err = src.History(context.Background(), "159915")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.Contains(t, err.Error(), "missing close column")
}

func TestSession(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 3, 5, h, m, 0, 0, ChinaStandardTime) }
	cases := []struct {
		name string
		t    time.Time
		want int
	}{
		{"pre-open", at(9, 0), 0},
		{"morning", at(10, 0), 30},
		{"lunch", at(12, 0), 120},
		{"afternoon", at(14, 0), 180},
		{"close", at(15, 0), 240},
		{"after close", at(16, 0), 240},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ElapsedTradingMinutes(tc.t))
		})
	}
	assert.True(t, BeforeClose(at(14, 59)))
	assert.False(t, BeforeClose(at(15, 0)))
	assert.True(t, IsTradingHours(at(10, 0)))
	assert.False(t, IsTradingHours(time.Date(2024, 3, 9, 10, 0, 0, 0, ChinaStandardTime)), "saturday")
}

func TestNormalizeAndMissing(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	out := Normalize([]PriceBar{{Date: d(3), Close: 3}, {Date: d(1), Close: 1}, {Date: d(3), Close: 4}})
	require.Len(t, out, 2)
	assert.Equal(t, 1.0, out[0].Close)
	assert.Equal(t, 4.0, out[1].Close)

	assert.True(t, Missing(math.NaN()))
	assert.True(t, Missing(-1))
	assert.False(t, Missing(0))
}
