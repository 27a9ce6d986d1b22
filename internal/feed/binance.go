// Package feed retrieves candle history. Binance is used for market data
// even when execution happens elsewhere: its kline endpoint is fast,
// unauthenticated, and reliable.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"llm-futures-trader/internal/trace"
	"llm-futures-trader/internal/types"
)

const defaultBaseURL = "https://api.binance.com"

type Binance struct {
	baseURL string
	client  *http.Client
}

func NewBinance() *Binance {
	return &Binance{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RecentCandles fetches up to limit klines for symbol at the given interval,
// ordered oldest to newest.
func (b *Binance) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "binance-klines")
	defer span.End()

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	u := b.baseURL + "/api/v3/klines?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("binance http %d", resp.StatusCode)
	}

	// Klines arrive as heterogeneous arrays:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no kline data returned for %s", symbol)
	}

	candles := make([]types.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("kline row %d too short (%d fields)", i, len(row))
		}
		c := types.Candle{}
		var convErr error
		c.OpenTime, convErr = asInt64(row[0], convErr)
		c.Open, convErr = asFloat(row[1], convErr)
		c.High, convErr = asFloat(row[2], convErr)
		c.Low, convErr = asFloat(row[3], convErr)
		c.Close, convErr = asFloat(row[4], convErr)
		c.Vol, convErr = asFloat(row[5], convErr)
		c.CloseTime, convErr = asInt64(row[6], convErr)
		if convErr != nil {
			return nil, fmt.Errorf("kline row %d: %w", i, convErr)
		}
		if i > 0 && c.OpenTime <= candles[i-1].OpenTime {
			return nil, fmt.Errorf("kline rows out of order at %d", i)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func asFloat(v any, prev error) (float64, error) {
	if prev != nil {
		return 0, prev
	}
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	}
	return 0, fmt.Errorf("unexpected kline field type %T", v)
}

func asInt64(v any, prev error) (int64, error) {
	if prev != nil {
		return 0, prev
	}
	switch x := v.(type) {
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("unexpected kline timestamp type %T", v)
}
