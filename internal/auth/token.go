package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs and verifies stateless HS256 bearer tokens carrying
// sub, iat and exp.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is empty")
	}
	return &TokenIssuer{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// Issue signs a token for subject that expires ttlMinutes from now. A
// non-positive ttl yields a token that is already expired.
func (t *TokenIssuer) Issue(subject string, ttlMinutes int) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrEmptySubject
	}

	now := t.now().UTC().Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, nil
}

// Verify checks signature, expiry and subject and returns the subject. It
// never consults a store.
func (t *TokenIssuer) Verify(tokenStr string) (string, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: token missing subject", ErrInvalidToken)
	}

	return claims.Subject, nil
}
