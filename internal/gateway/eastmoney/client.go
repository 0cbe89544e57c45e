// Package eastmoney 访问东方财富的指数日线接口。
package eastmoney

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://push2his.eastmoney.com"

var (
	// ErrUnsupportedMarket 表示代码不属于沪深市场（港股、美股暂不支持）。
	ErrUnsupportedMarket = errors.New("unsupported market")
	// ErrEmpty 表示接口没有返回任何 K 线。
	ErrEmpty = errors.New("empty kline response")
)

// Client 是指数历史行情客户端。
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New()
	c.SetBaseURL(strings.TrimRight(baseURL, "/"))
	c.SetTimeout(timeout)
	c.SetHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15")
	return &Client{http: c}
}

// SecID 把 sh000300 / sz399006 形式的代码转换为 secid（1.000300 / 0.399006）。
func SecID(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	switch {
	case strings.HasPrefix(code, "sh") && len(code) > 2:
		return "1." + code[2:], nil
	case strings.HasPrefix(code, "sz") && len(code) > 2:
		return "0." + code[2:], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMarket, code)
	}
}

// IndexCloses 返回指数的全部日收盘价（按日期升序）。
func (c *Client) IndexCloses(ctx context.Context, code string) ([]float64, error) {
	secid, err := SecID(code)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"secid":   secid,
			"fields1": "f1,f2,f3",
			"fields2": "f51,f52,f53,f54,f55",
			"klt":     "101",
			"fqt":     "0",
			"beg":     "19900101",
			"end":     "20500101",
		}).
		Get("/api/qt/stock/kline/get")
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", code, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch %s: status %d", code, resp.StatusCode())
	}
	return ParseKlineCloses(resp.Body())
}

// ParseKlineCloses 解析 data.klines（"date,open,close,high,low"）中的收盘价，跳过格式错误的行。
func ParseKlineCloses(body []byte) ([]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid kline json")
	}
	klines := gjson.GetBytes(body, "data.klines")
	if !klines.IsArray() {
		return nil, ErrEmpty
	}
	var closes []float64
	klines.ForEach(func(_, line gjson.Result) bool {
		parts := strings.Split(line.String(), ",")
		if len(parts) < 3 {
			return true
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return true
		}
		closes = append(closes, v)
		return true
	})
	if len(closes) == 0 {
		return nil, ErrEmpty
	}
	return closes, nil
}
