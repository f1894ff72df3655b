package auth

import (
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxAttempts   = 5
	defaultAttemptWindow = 300 * time.Second
	defaultBlockDuration = 900 * time.Second
	defaultMaxTracked    = 5000
)

// Identity is the rate limiting key for a login attempt.
func Identity(username, clientIP string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "@" + clientIP
}

// FailureResult describes the tracker state after a recorded failure.
type FailureResult struct {
	Failures     int
	Blocked      bool
	BlockedUntil time.Time
	// JustBlocked is true only for the failure that triggered the block.
	JustBlocked bool
}

// LoginAttemptTracker counts failed logins per identity in a sliding window
// and blocks an identity for a fixed duration once the threshold is hit.
// State lives in process memory only.
type LoginAttemptTracker struct {
	mu           sync.Mutex
	maxAttempts  int
	window       time.Duration
	block        time.Duration
	failures     map[string][]time.Time
	blockedUntil map[string]time.Time
	maxTracked   int
	now          func() time.Time
}

func NewLoginAttemptTracker(maxAttempts int, window, block time.Duration) *LoginAttemptTracker {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if window <= 0 {
		window = defaultAttemptWindow
	}
	if block <= 0 {
		block = defaultBlockDuration
	}

	return &LoginAttemptTracker{
		maxAttempts:  maxAttempts,
		window:       window,
		block:        block,
		failures:     make(map[string][]time.Time),
		blockedUntil: make(map[string]time.Time),
		maxTracked:   defaultMaxTracked,
		now:          time.Now,
	}
}

func (l *LoginAttemptTracker) BlockDuration() time.Duration {
	return l.block
}

func (l *LoginAttemptTracker) IsBlocked(identity string) bool {
	_, blocked := l.BlockedUntil(identity)
	return blocked
}

// BlockedUntil returns the unlock time when identity is blocked. An expired
// block is evicted.
func (l *LoginAttemptTracker) BlockedUntil(identity string) (time.Time, bool) {
	now := l.now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.activeBlock(identity, now)
}

func (l *LoginAttemptTracker) RecordFailure(identity string) FailureResult {
	now := l.now().UTC()
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if until, blocked := l.activeBlock(identity, now); blocked {
		return FailureResult{Blocked: true, BlockedUntil: until}
	}

	hits := l.failures[identity]
	filtered := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			filtered = append(filtered, hit)
		}
	}
	filtered = append(filtered, now)

	if len(filtered) >= l.maxAttempts {
		until := now.Add(l.block)
		l.blockedUntil[identity] = until
		delete(l.failures, identity)
		return FailureResult{
			Failures:     len(filtered),
			Blocked:      true,
			BlockedUntil: until,
			JustBlocked:  true,
		}
	}

	l.failures[identity] = filtered
	if len(l.failures)+len(l.blockedUntil) > l.maxTracked {
		l.sweep(now)
	}

	return FailureResult{Failures: len(filtered)}
}

func (l *LoginAttemptTracker) Clear(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, identity)
	delete(l.blockedUntil, identity)
}

// activeBlock must be called with l.mu held.
func (l *LoginAttemptTracker) activeBlock(identity string, now time.Time) (time.Time, bool) {
	until, ok := l.blockedUntil[identity]
	if !ok {
		return time.Time{}, false
	}
	if !now.Before(until) {
		delete(l.blockedUntil, identity)
		return time.Time{}, false
	}
	return until, true
}

// sweep drops identities whose newest failure left the window and blocks that
// have expired. Must be called with l.mu held.
func (l *LoginAttemptTracker) sweep(now time.Time) {
	threshold := now.Add(-l.window)
	for key, hits := range l.failures {
		if len(hits) == 0 || !hits[len(hits)-1].After(threshold) {
			delete(l.failures, key)
		}
	}
	for key, until := range l.blockedUntil {
		if !now.Before(until) {
			delete(l.blockedUntil, key)
		}
	}
}
