// Package llmobs wraps an Advisor with logging and tracing middleware.
package llmobs

import (
	"context"

	"llm-futures-trader/internal/interfaces"
	"llm-futures-trader/internal/logger"
	"llm-futures-trader/internal/trace"
	"llm-futures-trader/internal/types"
)

type observableAdvisor struct {
	advisor interfaces.Advisor
}

var _ interfaces.Advisor = (*observableAdvisor)(nil)

// Wrap wraps an advisor with observability middleware.
func Wrap(advisor interfaces.Advisor) interfaces.Advisor {
	return &observableAdvisor{advisor: advisor}
}

func (oa *observableAdvisor) Advise(ctx context.Context, prompt, topic string) (types.Outlook, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Advise")
	defer span.End()

	// Skip(1) so source attribution points at the wrapped caller.
	logger.DebugSkip(ctx, 1, "Requesting market outlook",
		"topic", topic,
		"prompt_len", len(prompt),
	)

	outlook, err := oa.advisor.Advise(ctx, prompt, topic)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get market outlook", err,
			"topic", topic,
		)
		return types.Outlook{}, err
	}

	logger.InfoSkip(ctx, 1, "Market outlook received",
		"topic", topic,
		"signal", outlook.Signal,
		"interpretation", outlook.Interpretation,
	)
	return outlook, nil
}
