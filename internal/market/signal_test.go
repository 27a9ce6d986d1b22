package market

import (
	"math"
	"strings"
	"testing"

	"llm-futures-trader/internal/types"
)

func bullishSnapshot() types.MarketSnapshot {
	return types.MarketSnapshot{
		Symbol:      "BTCUSDT",
		Interval:    "15m",
		LatestClose: 50000,
		SMAFast:     49500,
		SMASlow:     49000,
		RSI:         62,
		Momentum1h:  0.004,
		Change24h:   0.02,
	}
}

func TestDeriveSignalBullish(t *testing.T) {
	sig := DeriveSignal(bullishSnapshot())
	if sig.Signal != types.Bullish {
		t.Fatalf("signal = %s, want Bullish", sig.Signal)
	}
	// 0.25 + 0.20 + 0.07 + 0.15 + 0.10 = 0.77 -> confidence clamps at 0.95.
	if math.Abs(sig.Confidence-0.95) > 1e-9 {
		t.Errorf("confidence = %v, want 0.95", sig.Confidence)
	}
	want := "Price above long SMA (50000 vs 49000); SMA20>SMA60; RSI strong (62.0); 1h momentum +0.40%"
	if sig.Rationale != want {
		t.Errorf("rationale = %q, want %q", sig.Rationale, want)
	}
}

func TestDeriveSignalBearish(t *testing.T) {
	sig := DeriveSignal(types.MarketSnapshot{
		LatestClose: 48000,
		SMAFast:     48500,
		SMASlow:     49000,
		RSI:         38,
		Momentum1h:  -0.003,
		Change24h:   -0.01,
	})
	if sig.Signal != types.Bearish {
		t.Fatalf("signal = %s, want Bearish", sig.Signal)
	}
	want := "Price below long SMA (48000 vs 49000); SMA20<SMA60; RSI weak (38.0); 1h momentum -0.30%"
	if sig.Rationale != want {
		t.Errorf("rationale = %q, want %q", sig.Rationale, want)
	}
}

func TestDeriveSignalNeutralBand(t *testing.T) {
	// Trend up but MA cross down and flat everything else: score 0.05.
	sig := DeriveSignal(types.MarketSnapshot{
		LatestClose: 49100,
		SMAFast:     48900,
		SMASlow:     49000,
		RSI:         50,
	})
	if sig.Signal != types.Neutral {
		t.Fatalf("signal = %s, want Neutral", sig.Signal)
	}
	if math.Abs(sig.Confidence-0.60) > 1e-9 {
		t.Errorf("confidence = %v, want 0.60", sig.Confidence)
	}
}

func TestDeriveSignalDeterministic(t *testing.T) {
	snap := bullishSnapshot()
	first := DeriveSignal(snap)
	for i := 0; i < 10; i++ {
		got := DeriveSignal(snap)
		if got != first {
			t.Fatalf("signal not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestDeriveSignalRSIContributionCapped(t *testing.T) {
	base := bullishSnapshot()
	base.Momentum1h = 0
	base.Change24h = 0

	at60 := base
	at60.RSI = 90 // (90-55)/100 = 0.35, capped at 0.20
	sig := DeriveSignal(at60)
	// 0.25 + 0.20 + 0.20 = 0.65 -> confidence 0.55+0.65 clamps to 0.95
	if math.Abs(sig.Confidence-0.95) > 1e-9 {
		t.Errorf("confidence with capped RSI = %v, want 0.95", sig.Confidence)
	}
}

func TestFormatContextIncludesGuardrail(t *testing.T) {
	snap := bullishSnapshot()
	sig := DeriveSignal(snap)
	ctx := FormatContext(snap, sig)
	for _, want := range []string{"Symbol: BTCUSDT", "RSI-14: 62.0", "Deterministic guardrail: Bullish", "24h volume: 0.00 BTC"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
}
