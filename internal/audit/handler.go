package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"cloudvienna/internal/observability"
)

type lister interface {
	List(ctx context.Context, filter Filter) (Page, error)
}

// Handler serves the read-only audit log listing. Callers must put it behind
// admin authentication.
type Handler struct {
	repo   lister
	logger *observability.Logger
}

func NewHandler(repo lister, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/audit-logs?date_from=&date_to=&actor_username=
// &action=&resource_type=&result=&limit=&offset=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseFilter(r)
	if msg != "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": msg})
		return
	}

	page, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit_list_failed", map[string]any{
			"error":          err.Error(),
			"correlation_id": observability.CorrelationID(r.Context()),
		})
		sentry.CaptureException(err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit log unavailable"})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, page)
}

func parseFilter(r *http.Request) (Filter, string) {
	query := r.URL.Query()
	filter := Filter{
		Actor:        query.Get("actor_username"),
		Action:       query.Get("action"),
		ResourceType: query.Get("resource_type"),
		Result:       query.Get("result"),
	}

	var ok bool
	if filter.From, ok = parseTime(query.Get("date_from"), false); !ok {
		return Filter{}, "date_from must be RFC 3339 or YYYY-MM-DD"
	}
	if filter.To, ok = parseTime(query.Get("date_to"), true); !ok {
		return Filter{}, "date_to must be RFC 3339 or YYYY-MM-DD"
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return Filter{}, "date_to must not be before date_from"
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxPageLimit {
			return Filter{}, "limit must be between 1 and 200"
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return Filter{}, "offset must be zero or positive"
		}
		filter.Offset = offset
	}

	return filter, ""
}

// parseTime accepts RFC 3339, a zone-less timestamp (UTC) or a plain date.
// A plain date used as an upper bound covers the whole day.
func parseTime(raw string, endOfDay bool) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, true
	}
	return time.Time{}, false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
