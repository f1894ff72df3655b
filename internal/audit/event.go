package audit

import "context"

const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

type Event struct {
	Action        string
	Result        string
	Actor         string
	ResourceType  string
	ResourceID    string
	IPAddress     string
	CorrelationID string
	Details       map[string]any
}

// Recorder receives audit events. Implementations must not fail the caller:
// Record has no error return and should swallow its own failures.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, event Event)

func (f RecorderFunc) Record(ctx context.Context, event Event) {
	f(ctx, event)
}

// Discard drops every event.
var Discard Recorder = RecorderFunc(func(context.Context, Event) {})
