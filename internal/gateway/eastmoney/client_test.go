package eastmoney

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecID(t *testing.T) {
	id, err := SecID("sh000300")
	require.NoError(t, err)
	assert.Equal(t, "1.000300", id)

	id, err = SecID("SZ399006")
	require.NoError(t, err)
	assert.Equal(t, "0.399006", id)

	_, err = SecID("hkHSTECH")
	assert.ErrorIs(t, err, ErrUnsupportedMarket)
	_, err = SecID("us.NDX")
	assert.ErrorIs(t, err, ErrUnsupportedMarket)
}

func TestParseKlineCloses(t *testing.T) {
	closes, err := ParseKlineCloses([]byte(`{"data":{"klines":["2024-01-02,3400.1,3410.5,3420,3390","bad","2024-01-03,3410,3388.2,3415,3380"]}}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{3410.5, 3388.2}, closes)

	_, err = ParseKlineCloses([]byte(`{"data":null}`))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ParseKlineCloses([]byte(`<html>`))
	assert.Error(t, err)
}

func TestClient_IndexCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/stock/kline/get", r.URL.Path)
		assert.Equal(t, "1.000300", r.URL.Query().Get("secid"))
		assert.Equal(t, "101", r.URL.Query().Get("klt"))
		_, _ = w.Write([]byte(`{"data":{"klines":["2024-01-02,1,2,3,0.5"]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	closes, err := c.IndexCloses(context.Background(), "sh000300")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, closes)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).IndexCloses(context.Background(), "sz399922")
	assert.Error(t, err)
}
