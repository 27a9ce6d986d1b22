package interfaces

import (
	"context"

	"llm-futures-trader/internal/types"
)

type Engine interface {
	RunCycle(ctx context.Context) (*types.CycleResult, error)
}
