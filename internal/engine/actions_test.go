package engine

import (
	"testing"

	"llm-futures-trader/internal/types"
)

func TestActionFor(t *testing.T) {
	cases := []struct {
		side   types.PositionSide
		signal types.Direction
		want   types.TradeAction
	}{
		{types.SideNone, types.Bullish, types.OpenLong},
		{types.SideNone, types.Bearish, types.OpenShort},
		{types.SideNone, types.Neutral, types.NoOp},
		{types.SideLong, types.Bullish, types.Hold},
		{types.SideLong, types.Bearish, types.FlipToShort},
		{types.SideLong, types.Neutral, types.Close},
		{types.SideShort, types.Bullish, types.FlipToLong},
		{types.SideShort, types.Bearish, types.Hold},
		{types.SideShort, types.Neutral, types.Close},
	}
	for _, tc := range cases {
		if got := ActionFor(tc.side, tc.signal); got != tc.want {
			t.Errorf("ActionFor(%s, %s) = %s, want %s", tc.side, tc.signal, got, tc.want)
		}
	}
}
