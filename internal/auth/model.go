package auth

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type LoginInput struct {
	Username      string
	Password      string
	ClientIP      string
	CorrelationID string
}

type TokenBundle struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
	Username         string `json:"username"`
	Role             string `json:"role"`
}

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}
