// Package risk holds the stop-loss arithmetic. Attaching the computed stop
// to a live position is the exchange client's job and is best effort.
package risk

import "llm-futures-trader/internal/types"

// StopPrice is the stop-loss trigger price for a position entered at entry
// with a percentage offset: longs stop below entry, shorts above. Callers
// validate entry > 0 and pct >= 0 upstream.
func StopPrice(entry float64, side types.PositionSide, pct float64) float64 {
	if side == types.SideShort {
		return entry * (1 + pct/100)
	}
	return entry * (1 - pct/100)
}
