package audit

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"cloudvienna/internal/observability"
)

const writeTimeout = 3 * time.Second

type inserter interface {
	Insert(ctx context.Context, event Event) error
}

// Sink persists events and swallows write failures after logging them.
type Sink struct {
	store  inserter
	logger *observability.Logger
}

func NewSink(store inserter, logger *observability.Logger) *Sink {
	return &Sink{store: store, logger: logger}
}

func (s *Sink) Record(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := s.store.Insert(ctx, event); err != nil {
		s.logger.Error("audit_record_failed", map[string]any{
			"action": event.Action,
			"result": event.Result,
			"error":  err.Error(),
		})
		sentry.CaptureException(err)
	}
}
