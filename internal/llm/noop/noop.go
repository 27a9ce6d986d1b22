package noop

import (
	"context"

	"llm-futures-trader/internal/logger"
	"llm-futures-trader/internal/types"
)

// Advisor is the fallback when no LLM provider is configured. It never has an
// opinion, so the deterministic guardrail decides every cycle.
type Advisor struct{}

func New() *Advisor {
	return &Advisor{}
}

func (a *Advisor) Advise(ctx context.Context, prompt, topic string) (types.Outlook, error) {
	logger.Debug(ctx, "Noop advisor called, returning Neutral", "topic", topic)
	return types.Outlook{
		Signal:         "Neutral",
		Interpretation: "no advisor configured",
	}, nil
}
