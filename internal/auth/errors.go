package auth

import (
	"errors"
	"time"
)

var (
	ErrEmptyPassword = errors.New("password is empty")
	ErrEmptySubject  = errors.New("token subject is empty")

	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("invalid or expired token")

	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidRole  = errors.New("invalid role")
)

// ErrRateLimited is returned while an identity is locked out. It carries
// only the unlock time, never the failure count.
type ErrRateLimited struct {
	Until time.Time
}

func (e ErrRateLimited) Error() string {
	return "login temporarily locked"
}

// RetryAfter returns the remaining lock time relative to now, rounded up to
// whole seconds and never below one second.
func (e ErrRateLimited) RetryAfter(now time.Time) time.Duration {
	remaining := e.Until.Sub(now)
	if remaining < time.Second {
		return time.Second
	}
	return (remaining + time.Second - 1).Truncate(time.Second)
}
