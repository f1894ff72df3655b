package observability

import (
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment string) error {
	if strings.TrimSpace(dsn) == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		SendDefaultPII:   false,
		BeforeSend:       scrubEvent,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// scrubEvent drops credentials from captured requests.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event == nil || event.Request == nil {
		return event
	}
	for key := range event.Request.Headers {
		switch strings.ToLower(key) {
		case "authorization", "cookie", "x-cron-secret":
			event.Request.Headers[key] = "***"
		}
	}
	event.Request.Data = ""
	event.Request.Cookies = ""
	return event
}
