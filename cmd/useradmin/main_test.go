package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudvienna/internal/auth"
)

func TestRunHash(t *testing.T) {
	t.Setenv("API_PASSWORD_ITERATIONS", "100000")

	var out bytes.Buffer
	err := run([]string{"hash", "-env-dir", t.TempDir()}, strings.NewReader("StrongPwd123!\n"), &out)
	require.NoError(t, err)

	encoded := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(encoded, "pbkdf2_sha256$100000$"))
	assert.True(t, auth.NewPasswordHasher(0).Verify("StrongPwd123!", encoded))
}

func TestRunRejectsBadInvocations(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		args  []string
		stdin string
	}{
		{"No command", nil, ""},
		{"Hash without password", []string{"hash", "-env-dir", dir}, ""},
		{"Create without username", []string{"create", "-env-dir", dir}, "StrongPwd123!\n"},
		{"Unknown flag", []string{"create", "-nope"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, run(tt.args, strings.NewReader(tt.stdin), &out))
			assert.Empty(t, out.String())
		})
	}
}

func TestRunRejectsUnknownCommandBeforeConnecting(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	var out bytes.Buffer
	err := run([]string{"delete", "-username", "coach1", "-env-dir", t.TempDir()}, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "delete"`)
	assert.Empty(t, out.String())
}

func TestReadPassword(t *testing.T) {
	password, err := readPassword(strings.NewReader("with spaces inside \r\nsecond line"))
	require.NoError(t, err)
	assert.Equal(t, "with spaces inside ", password)

	password, err = readPassword(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", password)
}
