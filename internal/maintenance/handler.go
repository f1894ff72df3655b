package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"cloudvienna/internal/audit"
	"cloudvienna/internal/observability"
)

const maxRetentionDays = 3650

type purger interface {
	Purge(ctx context.Context, retention time.Duration, dryRun bool) (audit.PurgeResult, error)
}

// AuditPurgeHandler deletes old audit rows on behalf of a scheduler that
// authenticates with a shared cron secret.
type AuditPurgeHandler struct {
	repo       purger
	recorder   audit.Recorder
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
}

func NewAuditPurgeHandler(
	repo purger,
	recorder audit.Recorder,
	logger *observability.Logger,
	cronSecret string,
	retention time.Duration,
) *AuditPurgeHandler {
	return &AuditPurgeHandler{
		repo:       repo,
		recorder:   recorder,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
	}
}

func (h *AuditPurgeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, secret, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(secret)), []byte(h.cronSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	retention := h.retention
	if raw := strings.TrimSpace(r.URL.Query().Get("retention_days")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 || days > maxRetentionDays {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "retention_days must be between 1 and 3650"})
			return
		}
		retention = time.Duration(days) * 24 * time.Hour
	}
	dryRun := strings.EqualFold(r.URL.Query().Get("dry_run"), "true")

	result, err := h.repo.Purge(r.Context(), retention, dryRun)
	if err != nil {
		h.logger.Error("audit_purge_failed", map[string]any{"error": err.Error()})
		sentry.CaptureException(err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "purge failed"})
		return
	}

	action := "audit.purge"
	if dryRun {
		action = "audit.purge.preview"
	}
	h.recorder.Record(r.Context(), audit.Event{
		Action:        action,
		Result:        audit.ResultSuccess,
		Actor:         "cron",
		ResourceType:  "audit_log",
		IPAddress:     observability.ClientIP(r, false),
		CorrelationID: observability.CorrelationID(r.Context()),
		Details: map[string]any{
			"retention_days": result.RetentionDays,
			"to_delete":      result.ToDelete,
			"deleted":        result.Deleted,
		},
	})

	h.logger.Info("audit_purge_completed", map[string]any{
		"dry_run":        result.DryRun,
		"retention_days": result.RetentionDays,
		"to_delete":      result.ToDelete,
		"deleted":        result.Deleted,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
