package market

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"llm-futures-trader/internal/ta"
	"llm-futures-trader/internal/types"
)

// ErrInterval marks an interval string the unit table cannot resolve.
var ErrInterval = errors.New("unsupported interval")

var unitMinutes = map[byte]int{'m': 1, 'h': 60, 'd': 1440}

// IntervalMinutes converts a bar interval like "15m", "4h" or "1d" into
// minutes.
func IntervalMinutes(interval string) (int, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("%w %q", ErrInterval, interval)
	}
	mult, ok := unitMinutes[interval[len(interval)-1]]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrInterval, interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w %q", ErrInterval, interval)
	}
	return n * mult, nil
}

func barsFor(periodMinutes, intervalMinutes int) int {
	return int(math.Round(float64(periodMinutes) / float64(intervalMinutes)))
}

// safe substitutes fallback for NaN or infinite indicator values.
func safe(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// BuildSnapshot computes summary statistics and indicators from a candle
// series. Indicators without enough history fall back to defined defaults
// (RSI 50, SMA latest close, ATR%/volatility 0) rather than surfacing an
// undefined value.
func BuildSnapshot(symbol, interval string, candles []types.Candle) (types.MarketSnapshot, error) {
	im, err := IntervalMinutes(interval)
	if err != nil {
		return types.MarketSnapshot{}, err
	}
	if len(candles) == 0 {
		return types.MarketSnapshot{}, fmt.Errorf("no candles for %s", symbol)
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	vols := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		vols[i] = c.Vol
	}
	latest := closes[len(closes)-1]

	bars24 := barsFor(24*60, im)
	bars4 := barsFor(4*60, im)
	bars1 := barsFor(60, im)
	if bars1 < 1 {
		bars1 = 1
	}

	atr := safe(ta.ATR(highs, lows, closes, 14), 0)
	atrPct := 0.0
	if latest != 0 {
		atrPct = atr / latest * 100
	}

	return types.MarketSnapshot{
		Symbol:        symbol,
		Interval:      interval,
		LatestClose:   latest,
		Change24h:     ta.PctChange(closes, bars24),
		Change4h:      ta.PctChange(closes, bars4),
		Momentum1h:    ta.PctChange(closes, bars1),
		RSI:           safe(ta.RSI(closes, 14), 50),
		SMAFast:       safe(ta.SMA(closes, 20), latest),
		SMASlow:       safe(ta.SMA(closes, 60), latest),
		ATRPct:        atrPct,
		Volume24h:     sumTail(vols, bars24),
		Volatility24h: safe(ta.StdDev(barReturns(closes), bars24), 0),
	}, nil
}

// barReturns is the bar-to-bar percentage return series.
func barReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1])
	}
	return rets
}

func sumTail(vals []float64, n int) float64 {
	if n > len(vals) {
		n = len(vals)
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum
}
