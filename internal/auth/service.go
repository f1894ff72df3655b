package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloudvienna/internal/audit"
	"cloudvienna/internal/observability"
)

const (
	defaultTokenTTLMinutes = 60

	actionLogin = "auth.login"

	reasonInvalidCredentials = "invalid_credentials"
	reasonInactiveAccount    = "inactive_account"
	reasonRateLimited        = "rate_limited"
)

// UserStore is the account lookup the gateway depends on. Both methods return
// ErrUserNotFound when no account matches.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindBySubject(ctx context.Context, subject string) (User, error)
}

// Service implements login and token authorization on top of the hasher,
// the token issuer and the attempt tracker. It is safe for concurrent use.
type Service struct {
	users           UserStore
	hasher          *PasswordHasher
	tokens          *TokenIssuer
	tracker         *LoginAttemptTracker
	recorder        audit.Recorder
	logger          *observability.Logger
	tokenTTLMinutes int
}

func NewService(
	users UserStore,
	hasher *PasswordHasher,
	tokens *TokenIssuer,
	tracker *LoginAttemptTracker,
	recorder audit.Recorder,
	logger *observability.Logger,
) *Service {
	if recorder == nil {
		recorder = audit.Discard
	}
	return &Service{
		users:           users,
		hasher:          hasher,
		tokens:          tokens,
		tracker:         tracker,
		recorder:        recorder,
		logger:          logger,
		tokenTTLMinutes: defaultTokenTTLMinutes,
	}
}

func (s *Service) WithTokenTTL(minutes int) {
	if minutes > 0 {
		s.tokenTTLMinutes = minutes
	}
}

func (s *Service) TokenTTLMinutes() int {
	return s.tokenTTLMinutes
}

// Login checks credentials for username from clientIP. Cancellation of ctx
// is ignored so an attempt always runs to completion.
func (s *Service) Login(ctx context.Context, in LoginInput) (TokenBundle, error) {
	ctx = context.WithoutCancel(ctx)
	username := strings.TrimSpace(in.Username)
	identity := Identity(username, in.ClientIP)

	if until, blocked := s.tracker.BlockedUntil(identity); blocked {
		s.recordLogin(ctx, in, audit.ResultFailed, map[string]any{"reason": reasonRateLimited})
		return TokenBundle{}, ErrRateLimited{Until: until}
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.registerFailure(ctx, in, identity, reasonInvalidCredentials)
			return TokenBundle{}, ErrInvalidCredentials
		}
		return TokenBundle{}, fmt.Errorf("find user by username: %w", err)
	}

	if !user.Active {
		s.registerFailure(ctx, in, identity, reasonInactiveAccount)
		return TokenBundle{}, ErrInactiveAccount
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.registerFailure(ctx, in, identity, reasonInvalidCredentials)
		return TokenBundle{}, ErrInvalidCredentials
	}

	s.tracker.Clear(identity)

	token, err := s.tokens.Issue(user.Username, s.tokenTTLMinutes)
	if err != nil {
		return TokenBundle{}, fmt.Errorf("issue access token: %w", err)
	}

	s.recordLogin(ctx, in, audit.ResultSuccess, map[string]any{"role": user.Role})

	return TokenBundle{
		AccessToken:      token,
		TokenType:        "bearer",
		ExpiresInMinutes: s.tokenTTLMinutes,
		Username:         user.Username,
		Role:             user.Role,
	}, nil
}

// Authorize resolves a bearer token to an active account. Capability checks
// on the returned role are left to the caller.
func (s *Service) Authorize(ctx context.Context, token string) (Principal, error) {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	user, err := s.users.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, fmt.Errorf("find user by subject: %w", err)
	}
	if !user.Active {
		return Principal{}, ErrInactiveAccount
	}

	return Principal{Subject: user.Username, Role: user.Role}, nil
}

func (s *Service) registerFailure(ctx context.Context, in LoginInput, identity, reason string) {
	result := s.tracker.RecordFailure(identity)
	if result.JustBlocked {
		s.logger.Warn("login_identity_blocked", map[string]any{
			"ip":             in.ClientIP,
			"blocked_until":  result.BlockedUntil,
			"correlation_id": in.CorrelationID,
		})
	}
	s.recordLogin(ctx, in, audit.ResultFailed, map[string]any{"reason": reason})
}

func (s *Service) recordLogin(ctx context.Context, in LoginInput, result string, details map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("audit_record_panic", map[string]any{"action": actionLogin, "panic": rec})
		}
	}()

	s.recorder.Record(ctx, audit.Event{
		Action:        actionLogin,
		Result:        result,
		Actor:         strings.TrimSpace(in.Username),
		ResourceType:  "auth",
		IPAddress:     in.ClientIP,
		CorrelationID: in.CorrelationID,
		Details:       details,
	})
}
