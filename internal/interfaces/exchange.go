package interfaces

import (
	"context"

	"llm-futures-trader/internal/types"
)

// Exchange is the account/trading contract shared by the live venue and the
// forward-testing simulator.
type Exchange interface {
	AccountBalance(ctx context.Context, asset string) (float64, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	// PendingPosition returns the open position for symbol, or nil when flat.
	PendingPosition(ctx context.Context, symbol string) (*types.Position, error)
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol, mode string) error
	FlashClosePosition(ctx context.Context, positionID string) error
}

// StopLossExchange is the capability variant for venues that can attach a
// position-level stop-loss. Selected at construction time; the engine never
// probes for it at runtime.
type StopLossExchange interface {
	Exchange
	PlacePositionTPSL(ctx context.Context, symbol, positionID string, slPrice float64) error
}
