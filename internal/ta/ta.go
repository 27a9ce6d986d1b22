package ta

import "math"

// Indicator primitives over the trailing window of a series. They return NaN
// when the series is too short for the requested window; callers substitute
// their own fallback values.

func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

// RSI is the classic average-gain over average-loss oscillator. A window with
// zero average loss leaves the ratio undefined, so NaN is returned and the
// caller falls back to its neutral value.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return math.NaN()
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// StdDev is the sample standard deviation of the last n values.
func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n < 2 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n-1))
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	n := period
	if len(closes) < n+1 || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(n)
}

// PctChange is the relative change between the latest value and the value
// bars entries earlier. Returns 0 when the lookback exceeds the series or
// the base value is zero, never an undefined or infinite result.
func PctChange(vals []float64, bars int) float64 {
	if bars <= 0 || len(vals) <= bars {
		return 0
	}
	latest := vals[len(vals)-1]
	base := vals[len(vals)-1-bars]
	if base == 0 {
		return 0
	}
	return (latest - base) / base
}
