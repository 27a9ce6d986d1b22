package interfaces

import (
	"context"

	"llm-futures-trader/internal/types"
)

// CandleSource retrieves recent candles for a symbol, ordered oldest to
// newest with strictly increasing open times.
type CandleSource interface {
	RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
}
