package engine

import (
	"context"

	"llm-futures-trader/internal/journal"
	"llm-futures-trader/internal/logger"
)

// EventSink receives engine lifecycle events. The default sink logs them and
// mirrors them into the run journal; callers may install their own.
type EventSink interface {
	Event(ctx context.Context, name string, fields ...any)
}

type journalSink struct {
	jrnl *journal.Journal
}

func (s journalSink) Event(ctx context.Context, name string, fields ...any) {
	logger.InfoSkip(ctx, 1, name, fields...)
	s.jrnl.Event(name, fields...)
}
