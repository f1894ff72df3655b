package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Repository struct {
	db *sql.DB
}

type PurgeResult struct {
	RetentionDays int   `json:"retention_days"`
	DryRun        bool  `json:"dry_run"`
	ToDelete      int64 `json:"to_delete"`
	Deleted       int64 `json:"deleted"`
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, event Event) error {
	details, err := json.Marshal(Sanitize(event.Details))
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			actor_username, action, resource_type, resource_id, result,
			ip_address, correlation_id, details, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
	`,
		nullString(event.Actor),
		event.Action,
		nullString(event.ResourceType),
		nullString(event.ResourceID),
		event.Result,
		nullString(event.IPAddress),
		nullString(event.CorrelationID),
		string(details),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}

// List returns one page of audit rows, newest first, with the total count
// for the filter.
func (r *Repository) List(ctx context.Context, filter Filter) (Page, error) {
	filter = filter.normalized()
	where, args := filter.where()

	page := Page{Limit: filter.Limit, Offset: filter.Offset, Rows: []Record{}}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&page.Total); err != nil {
		return Page{}, fmt.Errorf("count audit rows: %w", err)
	}
	if page.Total == 0 {
		return page, nil
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, actor_username, action, resource_type, resource_id, result,
			ip_address, correlation_id, details, created_at
		FROM audit_log%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return Page{}, fmt.Errorf("query audit rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			record                                      Record
			actor, resourceType, resourceID, ip, corrID sql.NullString
			details                                     []byte
		)
		if err := rows.Scan(
			&record.ID, &actor, &record.Action, &resourceType, &resourceID, &record.Result,
			&ip, &corrID, &details, &record.CreatedAt,
		); err != nil {
			return Page{}, fmt.Errorf("scan audit row: %w", err)
		}
		record.Actor = actor.String
		record.ResourceType = resourceType.String
		record.ResourceID = resourceID.String
		record.IPAddress = ip.String
		record.CorrelationID = corrID.String
		record.Details = map[string]any{}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &record.Details); err != nil {
				return Page{}, fmt.Errorf("decode audit details %d: %w", record.ID, err)
			}
		}
		page.Rows = append(page.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate audit rows: %w", err)
	}

	return page, nil
}

// Purge deletes audit rows older than retention. With dryRun it only counts.
func (r *Repository) Purge(ctx context.Context, retention time.Duration, dryRun bool) (PurgeResult, error) {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	result := PurgeResult{
		RetentionDays: int(retention / (24 * time.Hour)),
		DryRun:        dryRun,
	}
	cutoff := time.Now().UTC().Add(-retention)

	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_log WHERE created_at < $1
	`, cutoff).Scan(&result.ToDelete); err != nil {
		return PurgeResult{}, fmt.Errorf("count stale audit rows: %w", err)
	}
	if dryRun || result.ToDelete == 0 {
		return result, nil
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("delete stale audit rows: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return PurgeResult{}, fmt.Errorf("stale audit rows affected: %w", err)
	}
	result.Deleted = deleted

	return result, nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
