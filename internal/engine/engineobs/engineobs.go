// Package engineobs wraps an Engine with logging and tracing middleware.
package engineobs

import (
	"context"
	"time"

	"llm-futures-trader/internal/interfaces"
	"llm-futures-trader/internal/logger"
	"llm-futures-trader/internal/trace"
	"llm-futures-trader/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{engine: eng}
}

func (oe *observableEngine) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunCycle")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting evaluation cycle")

	result, err := oe.engine.RunCycle(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Evaluation cycle failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Evaluation cycle completed",
		"symbol", result.Symbol,
		"signal", string(result.Signal),
		"action", string(result.Action),
		"status", string(result.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
