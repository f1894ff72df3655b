package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) (*TokenIssuer, *fakeClock) {
	t.Helper()
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)
	clock := newFakeClock()
	issuer.now = clock.Now
	return issuer, clock
}

func signClaims(t *testing.T, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("")
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	for _, subject := range []string{"admin", "coach1", "user.with.dots", "ñandú"} {
		token, err := issuer.Issue(subject, 60)
		require.NoError(t, err)

		got, err := issuer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, subject, got)
	}
}

func TestIssueRejectsEmptySubject(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	for _, subject := range []string{"", "   "} {
		_, err := issuer.Issue(subject, 60)
		assert.ErrorIs(t, err, ErrEmptySubject)
	}
}

func TestIssuedClaims(t *testing.T) {
	issuer, clock := newTestIssuer(t)

	token, err := issuer.Issue("admin", 60)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)

	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, clock.Now().Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, clock.Now().Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	token, err := issuer.Issue("admin", 60)
	require.NoError(t, err)

	segments := strings.Split(token, ".")
	require.Len(t, segments, 3)

	signature := []byte(segments[2])
	if signature[0] == 'A' {
		signature[0] = 'B'
	} else {
		signature[0] = 'A'
	}
	tampered := segments[0] + "." + segments[1] + "." + string(signature)

	_, err = issuer.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	token, err := issuer.Issue("coach1", 60)
	require.NoError(t, err)

	forged := signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin"})
	segments := strings.Split(token, ".")
	forgedSegments := strings.Split(forged, ".")

	_, err = issuer.Verify(segments[0] + "." + forgedSegments[1] + "." + segments[2])
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer, clock := newTestIssuer(t)

	expired, err := issuer.Issue("admin", -1)
	require.NoError(t, err)
	_, err = issuer.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := issuer.Issue("admin", 1)
	require.NoError(t, err)
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	clock.Advance(61 * time.Second)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	issuer, clock := newTestIssuer(t)
	now := clock.Now()
	valid := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	otherIssuer, err := NewTokenIssuer("another-secret-that-is-long-enough-too")
	require.NoError(t, err)
	otherIssuer.now = clock.Now
	otherToken, err := otherIssuer.Issue("admin", 60)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"Empty", ""},
		{"Garbage", "not-a-token"},
		{"Two segments", "abc.def"},
		{"Wrong secret", otherToken},
		{"Wrong algorithm", signClaims(t, jwt.SigningMethodHS512, valid)},
		{"Unsigned", func() string {
			token, err := jwt.NewWithClaims(jwt.SigningMethodNone, valid).SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return token
		}()},
		{"Missing subject", signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		})},
		{"Blank subject", signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "  ",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		})},
		{"Missing expiry", signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:  "admin",
			IssuedAt: jwt.NewNumericDate(now),
		})},
		{"Issued in the future", signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now.Add(time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Hour)),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := issuer.Verify(tt.token)
				assert.ErrorIs(t, err, ErrInvalidToken)
			})
		})
	}
}
