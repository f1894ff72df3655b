package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"cloudvienna/internal/audit"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

const (
	minPasswordLength = 12
	maxPasswordLength = 200
)

var (
	ErrInvalidUsername = errors.New("username format is invalid")
	ErrWeakPassword    = fmt.Errorf("password must be %d to %d characters", minPasswordLength, maxPasswordLength)
)

type UserAdminStore interface {
	CreateUser(ctx context.Context, username, passwordHash, role string) (User, error)
	SetPassword(ctx context.Context, username, passwordHash string) error
	SetActive(ctx context.Context, username string, active bool) error
	UpsertAdmin(ctx context.Context, username, passwordHash string) error
}

// RequestMeta carries the caller details recorded with audit events.
type RequestMeta struct {
	Actor         string
	ClientIP      string
	CorrelationID string
}

// UserManager creates accounts and changes passwords and activation.
type UserManager struct {
	store    UserAdminStore
	hasher   *PasswordHasher
	recorder audit.Recorder
}

func NewUserManager(store UserAdminStore, hasher *PasswordHasher, recorder audit.Recorder) *UserManager {
	if recorder == nil {
		recorder = audit.Discard
	}
	return &UserManager{store: store, hasher: hasher, recorder: recorder}
}

func (m *UserManager) Create(ctx context.Context, meta RequestMeta, username, password, role string) (User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernameRegex.MatchString(username) {
		return User{}, ErrInvalidUsername
	}
	role, err := NormalizeRole(role)
	if err != nil {
		return User{}, err
	}
	hash, err := m.hashNewPassword(password)
	if err != nil {
		return User{}, err
	}

	user, err := m.store.CreateUser(ctx, username, hash, role)
	if err != nil {
		m.record(ctx, meta, "users.create", audit.ResultFailed, username, map[string]any{"role": role, "error": err.Error()})
		return User{}, err
	}

	m.record(ctx, meta, "users.create", audit.ResultSuccess, username, map[string]any{"role": role})
	return user, nil
}

func (m *UserManager) ResetPassword(ctx context.Context, meta RequestMeta, username, password string) error {
	username = strings.TrimSpace(username)
	hash, err := m.hashNewPassword(password)
	if err != nil {
		return err
	}

	if err := m.store.SetPassword(ctx, username, hash); err != nil {
		m.record(ctx, meta, "users.password_reset", audit.ResultFailed, username, map[string]any{"error": err.Error()})
		return err
	}

	m.record(ctx, meta, "users.password_reset", audit.ResultSuccess, username, nil)
	return nil
}

func (m *UserManager) SetActive(ctx context.Context, meta RequestMeta, username string, active bool) error {
	username = strings.TrimSpace(username)
	action := "users.reactivate"
	if !active {
		action = "users.deactivate"
	}

	if err := m.store.SetActive(ctx, username, active); err != nil {
		m.record(ctx, meta, action, audit.ResultFailed, username, map[string]any{"error": err.Error()})
		return err
	}

	m.record(ctx, meta, action, audit.ResultSuccess, username, nil)
	return nil
}

// BootstrapAdmin ensures the configured admin account exists with the given
// password. Both values empty is a no-op.
func (m *UserManager) BootstrapAdmin(ctx context.Context, username, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	password = strings.TrimSpace(password)

	if username == "" && password == "" {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("API_ADMIN_USER and API_ADMIN_PASSWORD are required together")
	}
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	return m.store.UpsertAdmin(ctx, username, hash)
}

func (m *UserManager) hashNewPassword(password string) (string, error) {
	length := utf8.RuneCountInString(password)
	if strings.TrimSpace(password) == "" || length < minPasswordLength || length > maxPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := m.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (m *UserManager) record(ctx context.Context, meta RequestMeta, action, result, username string, details map[string]any) {
	m.recorder.Record(ctx, audit.Event{
		Action:        action,
		Result:        result,
		Actor:         meta.Actor,
		ResourceType:  "user",
		ResourceID:    username,
		IPAddress:     meta.ClientIP,
		CorrelationID: meta.CorrelationID,
		Details:       details,
	})
}
