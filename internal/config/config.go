package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinSecretLength is the shortest signing secret accepted outside
// development.
const MinSecretLength = 32

var (
	ErrMisconfiguredSecret = errors.New("misconfigured signing secret")
	ErrWeakAdminPassword   = errors.New("admin password is a placeholder")
	ErrIncompleteTLS       = errors.New("tls cert and key must be set together")
)

var placeholderSecrets = map[string]struct{}{
	"change_me_in_env": {},
	"change-me":        {},
	"changeme":         {},
	"secret":           {},
	"jwt-secret":       {},
}

type Config struct {
	AppEnv string
	Host   string
	Port   string

	DatabaseURL string
	DBPool      DBPool

	JWTSecret       string
	TokenTTLMinutes int

	LoginMaxAttempts   int
	LoginWindow        time.Duration
	LoginBlock         time.Duration
	PasswordIterations int

	TrustProxyHeaders bool
	TLSCertFile       string
	TLSKeyFile        string

	AdminUsername string
	AdminPassword string

	SentryDSN      string
	CronSecret     string
	AuditRetention time.Duration
	RunMigrations  bool
}

type DBPool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadDotEnv reads .env and then .env.<APP_ENV> from dir. Variables already
// present in the process environment win.
func LoadDotEnv(dir string) {
	_ = godotenv.Load(dir + "/.env")
	if env := strings.TrimSpace(os.Getenv("APP_ENV")); env != "" {
		_ = godotenv.Load(dir + "/.env." + strings.ToLower(env))
	}
}

// Load builds a Config from the process environment.
func Load() (Config, error) {
	cfg := Config{
		AppEnv: strings.ToLower(envOrDefault("APP_ENV", "production")),
		Host:   envOrDefault("API_HOST", ""),
		Port:   envOrDefault("PORT", envOrDefault("API_PORT", "8000")),

		DBPool: DBPool{
			MaxOpenConns:    EnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    EnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			ConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},

		JWTSecret:       os.Getenv("API_JWT_SECRET"),
		TokenTTLMinutes: EnvIntOrDefault("API_TOKEN_MINUTES", 60),

		LoginMaxAttempts:   EnvIntOrDefault("API_LOGIN_RATE_LIMIT_ATTEMPTS", 5),
		LoginWindow:        envSecondsOrDefault("API_LOGIN_RATE_LIMIT_WINDOW_SECONDS", 300),
		LoginBlock:         envSecondsOrDefault("API_LOGIN_BLOCK_SECONDS", 900),
		PasswordIterations: EnvIntOrDefault("API_PASSWORD_ITERATIONS", 300_000),

		TrustProxyHeaders: EnvBoolOrDefault("API_PROXY_HEADERS", true),
		TLSCertFile:       envOrDefault("API_TLS_CERTFILE", ""),
		TLSKeyFile:        envOrDefault("API_TLS_KEYFILE", ""),

		AdminUsername: envOrDefault("API_ADMIN_USER", ""),
		AdminPassword: strings.TrimSpace(os.Getenv("API_ADMIN_PASSWORD")),

		SentryDSN:      envOrDefault("SENTRY_DSN", ""),
		CronSecret:     envOrDefault("CRON_SECRET", ""),
		AuditRetention: envDaysOrDefault("AUDIT_RETENTION_DAYS", 90),
		RunMigrations:  EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", true),
	}

	databaseURL, err := databaseURLFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.DatabaseURL = databaseURL

	return cfg, nil
}

// IsDevelopment reports whether weak local settings are tolerated. Only an
// explicit development APP_ENV qualifies; unset means production.
func (c Config) IsDevelopment() bool {
	switch c.AppEnv {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Validate enforces the startup contract. Any error is fatal.
func (c Config) Validate() error {
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return ErrIncompleteTLS
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("%w: API_JWT_SECRET is not set", ErrMisconfiguredSecret)
	}
	if c.IsDevelopment() {
		return nil
	}

	if isPlaceholder(c.JWTSecret) {
		return fmt.Errorf("%w: API_JWT_SECRET uses a placeholder value", ErrMisconfiguredSecret)
	}
	if len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("%w: API_JWT_SECRET must be at least %d bytes", ErrMisconfiguredSecret, MinSecretLength)
	}
	if c.AdminPassword != "" && isPlaceholder(c.AdminPassword) {
		return ErrWeakAdminPassword
	}

	return nil
}

func isPlaceholder(value string) bool {
	_, ok := placeholderSecrets[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

func databaseURLFromEnv() (string, error) {
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		return value, nil
	}

	host := envOrDefault("DB_HOST", "")
	name := envOrDefault("DB_NAME", "")
	if host == "" || name == "" {
		return "", fmt.Errorf("missing required env: DATABASE_URL or DB_HOST and DB_NAME")
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, envOrDefault("DB_PORT", "5432")),
		Path:   "/" + name,
	}
	if user := envOrDefault("DB_USER", ""); user != "" {
		u.User = url.UserPassword(user, os.Getenv("DB_PASSWORD"))
	}
	q := url.Values{}
	q.Set("sslmode", envOrDefault("DB_SSLMODE", "prefer"))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func EnvIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(EnvIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(EnvIntOrDefault(name, fallback)) * time.Second
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(EnvIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
