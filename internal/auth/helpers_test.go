package auth

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cloudvienna/internal/audit"
	"cloudvienna/internal/observability"
)

const testSecret = "test-signing-secret-with-at-least-32-bytes"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	testHasher     = NewPasswordHasher(MinPasswordIterations)
	hashCacheMu    sync.Mutex
	hashCacheByPwd = map[string]string{}
)

// hashFor memoizes hashes across tests; PBKDF2 is slow on purpose.
func hashFor(t *testing.T, password string) string {
	t.Helper()
	hashCacheMu.Lock()
	defer hashCacheMu.Unlock()

	if encoded, ok := hashCacheByPwd[password]; ok {
		return encoded
	}
	encoded, err := testHasher.Hash(password)
	require.NoError(t, err)
	hashCacheByPwd[password] = encoded
	return encoded
}

type fakeUserStore struct {
	mu         sync.Mutex
	users      map[string]User
	err        error
	calls      int
	lastCtxErr error
}

func newFakeUserStore(users ...User) *fakeUserStore {
	store := &fakeUserStore{users: map[string]User{}}
	for _, user := range users {
		store.users[strings.ToLower(user.Username)] = user
	}
	return store
}

func (s *fakeUserStore) FindByUsername(ctx context.Context, username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.lastCtxErr = ctx.Err()
	if s.err != nil {
		return User{}, s.err
	}
	user, ok := s.users[strings.ToLower(username)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindBySubject(ctx context.Context, subject string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return User{}, s.err
	}
	for _, user := range s.users {
		if user.Username == subject {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *fakeUserStore) setActive(username string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[strings.ToLower(username)]
	user.Active = active
	s.users[strings.ToLower(username)] = user
}

func (s *fakeUserStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type eventLog struct {
	mu     sync.Mutex
	events []audit.Event
}

func (l *eventLog) Record(_ context.Context, event audit.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) last() audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return audit.Event{}
	}
	return l.events[len(l.events)-1]
}

func (l *eventLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

type testGateway struct {
	service *Service
	store   *fakeUserStore
	tracker *LoginAttemptTracker
	tokens  *TokenIssuer
	events  *eventLog
	clock   *fakeClock
}

func newTestGateway(t *testing.T, maxAttempts int, users ...User) *testGateway {
	t.Helper()

	clock := newFakeClock()
	tokens, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)
	tokens.now = clock.Now

	tracker := NewLoginAttemptTracker(maxAttempts, 300*time.Second, 900*time.Second)
	tracker.now = clock.Now

	store := newFakeUserStore(users...)
	events := &eventLog{}
	service := NewService(store, testHasher, tokens, tracker, events, observability.NewLoggerTo(io.Discard))

	return &testGateway{
		service: service,
		store:   store,
		tracker: tracker,
		tokens:  tokens,
		events:  events,
		clock:   clock,
	}
}

func adminUser(t *testing.T) User {
	return User{ID: "u-1", Username: "admin", PasswordHash: hashFor(t, "RightPass"), Role: RoleAdmin, Active: true}
}

func coachUser(t *testing.T) User {
	return User{ID: "u-2", Username: "coach1", PasswordHash: hashFor(t, "CoachPass123"), Role: RoleCoach, Active: true}
}
