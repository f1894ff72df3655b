package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"cloudvienna/internal/observability"
)

const (
	maxJSONBodyBytes = 1 << 20
	maxUsernameBytes = 128
)

type Handler struct {
	service    *Service
	users      *UserManager
	logger     *observability.Logger
	trustProxy bool
	now        func() time.Time
}

func NewHandler(service *Service, users *UserManager, logger *observability.Logger, trustProxy bool) *Handler {
	return &Handler{
		service:    service,
		users:      users,
		logger:     logger,
		trustProxy: trustProxy,
		now:        time.Now,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || len(body.Username) > maxUsernameBytes || body.Password == "" || len(body.Password) > maxPasswordLength*4 {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	bundle, err := h.service.Login(r.Context(), LoginInput{
		Username:      body.Username,
		Password:      body.Password,
		ClientIP:      observability.ClientIP(r, h.trustProxy),
		CorrelationID: observability.CorrelationID(r.Context()),
	})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, bundle)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body createUserRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	user, err := h.users.Create(r.Context(), h.requestMeta(r), body.Username, body.Password, body.Role)
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
		"active":   user.Active,
	})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body passwordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	username := r.PathValue("username")
	if err := h.users.ResetPassword(r.Context(), h.requestMeta(r), username, body.Password); err != nil {
		h.writeUserError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) ReactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	username := r.PathValue("username")
	if err := h.users.SetActive(r.Context(), h.requestMeta(r), username, active); err != nil {
		h.writeUserError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "username": username, "active": active})
}

func (h *Handler) requestMeta(r *http.Request) RequestMeta {
	principal, _ := PrincipalFrom(r.Context())
	return RequestMeta{
		Actor:         principal.Subject,
		ClientIP:      observability.ClientIP(r, h.trustProxy),
		CorrelationID: observability.CorrelationID(r.Context()),
	}
}

func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var lockedErr ErrRateLimited
	switch {
	case errors.As(err, &lockedErr):
		w.Header().Set("Retry-After", strconv.Itoa(int(lockedErr.RetryAfter(h.now()).Seconds())))
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, ErrInactiveAccount), errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "access denied")
	default:
		h.captureError(r, err)
		writeError(w, http.StatusInternalServerError, "authentication failed")
	}
}

func (h *Handler) writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidUsername), errors.Is(err, ErrWeakPassword), errors.Is(err, ErrInvalidRole):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrUserExists):
		writeError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		h.captureError(r, err)
		writeError(w, http.StatusInternalServerError, "user update failed")
	}
}

func (h *Handler) captureError(r *http.Request, err error) {
	h.logger.Error("auth_request_failed", map[string]any{
		"path":           r.URL.Path,
		"error":          err.Error(),
		"correlation_id": observability.CorrelationID(r.Context()),
	})
	sentry.CaptureException(err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
