package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSI(t *testing.T) {
	_, err := RSI(ramp(14, 1, 1), 14)
	require.ErrorIs(t, err, ErrShortSeries)

	up, err := RSI(ramp(40, 1, 0.1), 14)
	require.NoError(t, err)
	assert.Greater(t, up, 99.0)

	down, err := RSI(ramp(40, 10, -0.1), 14)
	require.NoError(t, err)
	assert.Less(t, down, 1.0)

	neutral, err := RSI(ramp(40, 3, 0), 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, neutral)
}

func TestMACD(t *testing.T) {
	short := MACD(ramp(30, 1, 0.1))
	assert.Equal(t, MACDUnknown, short.Trend)

	rising := ramp(60, 1, 0)
	for i := range rising {
		rising[i] = 1 + float64(i*i)*0.001
	}
	v := MACD(rising)
	assert.Greater(t, v.Hist, 0.0)
	assert.Contains(t, []string{MACDBullish, MACDBullishWeakening}, v.Trend)
}

func TestMACDTrend(t *testing.T) {
	assert.Equal(t, MACDBullish, MACDTrend(0.2, 0.1))
	assert.Equal(t, MACDBullishWeakening, MACDTrend(0.1, 0.2))
	assert.Equal(t, MACDBearish, MACDTrend(-0.2, -0.1))
	assert.Equal(t, MACDBearishWeakening, MACDTrend(-0.1, -0.2))
	assert.Equal(t, MACDBearish, MACDTrend(0, 0.1))
}

func TestBollingerPercentB(t *testing.T) {
	v, err := BollingerPercentB(ramp(30, 2, 0), 20, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	v, err = BollingerPercentB(ramp(30, 1, 0.1), 20, 2)
	require.NoError(t, err)
	assert.Greater(t, v, 0.5)

	_, err = BollingerPercentB(ramp(10, 1, 0.1), 20, 2)
	assert.ErrorIs(t, err, ErrShortSeries)
}

func TestOBVSlope(t *testing.T) {
	closes := ramp(20, 1, 0.1)
	vols := ramp(20, 100000, 0)
	// 连续上涨：每根 OBV 增加 100000，窗口内 9 个增量
	assert.InDelta(t, 9.0, OBVSlope(closes, vols, 10), 1e-9)
	assert.Equal(t, 0.0, OBVSlope(closes[:5], vols[:5], 10))
}

func TestVolumeRatio(t *testing.T) {
	assert.Equal(t, 1.0, VolumeRatio([]float64{0, 0, 0, 0, 0}, 5))
	assert.InDelta(t, 5.0/1.8, VolumeRatio([]float64{9, 1, 1, 1, 1, 5}, 5), 1e-9)
	assert.Equal(t, 1.0, VolumeRatio([]float64{1, 2}, 5))
}

func TestWeeklyTrend(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday
	var dates []time.Time
	for d := 0; len(dates) < 40; d++ {
		day := start.AddDate(0, 0, d)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, day)
	}

	assert.Equal(t, TrendUnknown, WeeklyTrend(dates[:15], ramp(15, 1, 0.1)))
	assert.Equal(t, TrendUp, WeeklyTrend(dates, ramp(40, 1, 0.1)))
	assert.Equal(t, TrendDown, WeeklyTrend(dates, ramp(40, 10, -0.1)))
	assert.Equal(t, TrendDown, WeeklyTrend(dates, ramp(40, 3, 0)), "flat weekly close is not above its MA")

	weekly := WeeklyCloses(dates[:10], ramp(10, 1, 1))
	assert.Equal(t, []float64{5, 10}, weekly)
}

func TestWeeklyTrend_HolidayWeek(t *testing.T) {
	friday := func(week int) time.Time { return time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*week) }

	// 第 4 周整周休市，落在 MA5 窗口内
	dates := []time.Time{friday(0), friday(1), friday(2), friday(4), friday(5)}
	closes := []float64{10, 11, 12, 13, 15}
	weekly := WeeklyCloses(dates, closes)
	require.Len(t, weekly, 6)
	assert.True(t, math.IsNaN(weekly[3]))
	assert.Equal(t, 15.0, weekly[5])
	assert.Equal(t, TrendDown, WeeklyTrend(dates, closes))

	// 空白周移出窗口后恢复正常判断
	dates = []time.Time{friday(0), friday(2), friday(3), friday(4), friday(5), friday(6)}
	closes = []float64{9, 10, 11, 12, 13, 15}
	assert.Equal(t, TrendUp, WeeklyTrend(dates, closes))

	// 周内缺失的收盘价不覆盖已有值
	dates = []time.Time{friday(0).AddDate(0, 0, -1), friday(0)}
	assert.Equal(t, []float64{7}, WeeklyCloses(dates, []float64{7, math.NaN()}))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 12.35, Round(12.346, 2))
	assert.Equal(t, -0.13, Round(-0.125, 2))
}
