package interfaces

import (
	"context"

	"llm-futures-trader/internal/types"
)

// Advisor produces the primary directional opinion for a topic given a
// fully rendered prompt.
type Advisor interface {
	Advise(ctx context.Context, prompt, topic string) (types.Outlook, error)
}

// HeadlineSource supplies recent headlines used to enrich the advisor prompt.
type HeadlineSource interface {
	Headlines(ctx context.Context, topic string, max int) ([]string, error)
}
