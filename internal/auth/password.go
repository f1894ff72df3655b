package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordAlgorithm = "pbkdf2_sha256"

	DefaultPasswordIterations = 300_000
	MinPasswordIterations     = 100_000
	// Stored records above this are treated as malformed.
	maxPasswordIterations = 10_000_000

	passwordSaltBytes   = 16
	passwordDigestBytes = 32
)

// PasswordHasher hashes and verifies passwords as
// "pbkdf2_sha256$<iterations>$<salt>$<digest>". It holds no mutable state.
type PasswordHasher struct {
	iterations int
}

func NewPasswordHasher(iterations int) *PasswordHasher {
	if iterations <= 0 {
		iterations = DefaultPasswordIterations
	}
	if iterations < MinPasswordIterations {
		iterations = MinPasswordIterations
	}
	return &PasswordHasher{iterations: iterations}
}

func (h *PasswordHasher) Iterations() int {
	return h.iterations
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := pbkdf2.Key([]byte(password), salt, h.iterations, passwordDigestBytes, sha256.New)

	return strings.Join([]string{
		passwordAlgorithm,
		strconv.Itoa(h.iterations),
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(digest),
	}, "$"), nil
}

// Verify reports whether password matches encoded. Any malformed encoded
// value is a mismatch.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	iterations, salt, expected, ok := parsePasswordRecord(encoded)
	if !ok {
		return false
	}

	digest := pbkdf2.Key([]byte(password), salt, iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(digest, expected) == 1
}

func parsePasswordRecord(encoded string) (int, []byte, []byte, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != passwordAlgorithm {
		return 0, nil, nil, false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 || iterations > maxPasswordIterations {
		return 0, nil, nil, false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, false
	}
	digest, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(digest) == 0 || len(digest) > sha256.Size*4 {
		return 0, nil, nil, false
	}

	return iterations, salt, digest, true
}
