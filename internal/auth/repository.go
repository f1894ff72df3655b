package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository is the Postgres-backed UserStore.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, ErrUserNotFound
	}

	return r.findOne(ctx, `
		SELECT id, username, password_hash, role, active, created_at, updated_at
		FROM app_users
		WHERE lower(username) = lower($1)
	`, username)
}

// FindBySubject resolves a token subject. Subjects are issued from the
// canonical username, so the lookup is exact.
func (r *Repository) FindBySubject(ctx context.Context, subject string) (User, error) {
	if strings.TrimSpace(subject) == "" {
		return User{}, ErrUserNotFound
	}

	return r.findOne(ctx, `
		SELECT id, username, password_hash, role, active, created_at, updated_at
		FROM app_users
		WHERE username = $1
	`, subject)
}

func (r *Repository) findOne(ctx context.Context, query string, arg string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

func (r *Repository) CreateUser(ctx context.Context, username, passwordHash, role string) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	user := User{
		ID:           id.String(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, $5, $5)
	`, user.ID, user.Username, user.PasswordHash, user.Role, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (r *Repository) SetPassword(ctx context.Context, username, passwordHash string) error {
	return r.updateOne(ctx, "set password", `
		UPDATE app_users
		SET password_hash = $2, updated_at = $3
		WHERE lower(username) = lower($1)
	`, username, passwordHash, time.Now().UTC())
}

func (r *Repository) SetActive(ctx context.Context, username string, active bool) error {
	return r.updateOne(ctx, "set active", `
		UPDATE app_users
		SET active = $2, updated_at = $3
		WHERE lower(username) = lower($1)
	`, username, active, time.Now().UTC())
}

func (r *Repository) updateOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpsertAdmin creates the bootstrap admin account or resets its password and
// re-activates it.
func (r *Repository) UpsertAdmin(ctx context.Context, username, passwordHash string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, 'admin', true, $4, $4)
		ON CONFLICT ((lower(username)))
		DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = 'admin',
			active = true,
			updated_at = EXCLUDED.updated_at
	`, id.String(), username, passwordHash, now)
	if err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}

	return nil
}
