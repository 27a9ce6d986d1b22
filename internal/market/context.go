package market

import (
	"fmt"
	"strings"

	"llm-futures-trader/internal/types"
)

// FormatContext renders the compact textual market block fed to the advisor
// prompt, including the deterministic guardrail line.
func FormatContext(snap types.MarketSnapshot, sig types.TechnicalSignal) string {
	base := strings.ReplaceAll(snap.Symbol, "USDT", "")
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s | Interval: %s\n", snap.Symbol, snap.Interval)
	fmt.Fprintf(&b, "Last close: %.2f USDT | 24h change: %.2f%% | 4h change: %.2f%% | 1h momentum: %.2f%%\n",
		snap.LatestClose, snap.Change24h*100, snap.Change4h*100, snap.Momentum1h*100)
	fmt.Fprintf(&b, "SMA20/SMA60: %.2f/%.2f | RSI-14: %.1f | ATR%%: %.2f%% | 24h volatility: %.2f%%\n",
		snap.SMAFast, snap.SMASlow, snap.RSI, snap.ATRPct, snap.Volatility24h*100)
	fmt.Fprintf(&b, "24h volume: %.2f %s\n", snap.Volume24h, base)
	fmt.Fprintf(&b, "Deterministic guardrail: %s (confidence %.0f%%) - %s",
		sig.Signal, sig.Confidence*100, sig.Rationale)
	return b.String()
}
