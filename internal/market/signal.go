package market

import (
	"fmt"
	"math"
	"strings"

	"llm-futures-trader/internal/types"
)

// Scoring weights for the deterministic guardrail signal. Additive; the goal
// is not to be a strategy but a sanity check on the external opinion.
const (
	trendWeight    = 0.25
	maCrossWeight  = 0.20
	rsiWeightCap   = 0.20
	momentumWeight = 0.15
	change24Weight = 0.10

	momentumFloor = 0.002
	change24Floor = 0.005

	bullThreshold = 0.15
	bearThreshold = -0.15
)

// DeriveSignal scores a snapshot into a directional signal with confidence
// and a rationale. Deterministic and order-stable: the same snapshot always
// yields the same signal byte for byte.
func DeriveSignal(snap types.MarketSnapshot) types.TechnicalSignal {
	score := 0.0
	var parts []string

	if snap.LatestClose > snap.SMASlow {
		score += trendWeight
		parts = append(parts, fmt.Sprintf("Price above long SMA (%.0f vs %.0f)", snap.LatestClose, snap.SMASlow))
	} else {
		score -= trendWeight
		parts = append(parts, fmt.Sprintf("Price below long SMA (%.0f vs %.0f)", snap.LatestClose, snap.SMASlow))
	}

	if snap.SMAFast > snap.SMASlow {
		score += maCrossWeight
		parts = append(parts, "SMA20>SMA60")
	} else {
		score -= maCrossWeight
		parts = append(parts, "SMA20<SMA60")
	}

	switch {
	case snap.RSI >= 55:
		score += math.Min(rsiWeightCap, (snap.RSI-55)/100)
		parts = append(parts, fmt.Sprintf("RSI strong (%.1f)", snap.RSI))
	case snap.RSI <= 45:
		score -= math.Min(rsiWeightCap, (45-snap.RSI)/100)
		parts = append(parts, fmt.Sprintf("RSI weak (%.1f)", snap.RSI))
	}

	switch {
	case snap.Momentum1h >= momentumFloor:
		score += momentumWeight
		parts = append(parts, fmt.Sprintf("1h momentum +%.2f%%", snap.Momentum1h*100))
	case snap.Momentum1h <= -momentumFloor:
		score -= momentumWeight
		parts = append(parts, fmt.Sprintf("1h momentum %.2f%%", snap.Momentum1h*100))
	}

	// 24h change contributes to the score only, no rationale line.
	switch {
	case snap.Change24h >= change24Floor:
		score += change24Weight
	case snap.Change24h <= -change24Floor:
		score -= change24Weight
	}

	signal := types.Neutral
	if score > bullThreshold {
		signal = types.Bullish
	} else if score < bearThreshold {
		signal = types.Bearish
	}

	confidence := math.Max(0.45, math.Min(0.95, 0.55+math.Abs(score)))

	return types.TechnicalSignal{
		Signal:     signal,
		Confidence: confidence,
		Rationale:  strings.Join(parts, "; "),
	}
}
