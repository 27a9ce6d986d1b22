package engine

import "llm-futures-trader/internal/types"

type transition struct {
	side   types.PositionSide
	signal types.Direction
}

// decisionTable maps (current exposure, final signal) to the action taken.
// A neutral signal flattens any open position and does nothing when flat.
var decisionTable = map[transition]types.TradeAction{
	{types.SideNone, types.Bullish}:  types.OpenLong,
	{types.SideNone, types.Bearish}:  types.OpenShort,
	{types.SideNone, types.Neutral}:  types.NoOp,
	{types.SideLong, types.Bullish}:  types.Hold,
	{types.SideLong, types.Bearish}:  types.FlipToShort,
	{types.SideLong, types.Neutral}:  types.Close,
	{types.SideShort, types.Bullish}: types.FlipToLong,
	{types.SideShort, types.Bearish}: types.Hold,
	{types.SideShort, types.Neutral}: types.Close,
}

// ActionFor looks up the trade action for the current side and final signal.
func ActionFor(side types.PositionSide, signal types.Direction) types.TradeAction {
	if a, ok := decisionTable[transition{side, signal}]; ok {
		return a
	}
	return types.NoOp
}
