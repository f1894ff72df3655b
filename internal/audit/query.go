package audit

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Filter narrows an audit log listing. Blank string fields and zero times
// are ignored. Action matches as a prefix so "users" finds "users.create".
type Filter struct {
	From         time.Time
	To           time.Time
	Actor        string
	Action       string
	ResourceType string
	Result       string
	Limit        int
	Offset       int
}

// Record is a stored audit event.
type Record struct {
	ID            int64          `json:"id"`
	Actor         string         `json:"actor_username,omitempty"`
	Action        string         `json:"action"`
	ResourceType  string         `json:"resource_type,omitempty"`
	ResourceID    string         `json:"resource_id,omitempty"`
	Result        string         `json:"result"`
	IPAddress     string         `json:"ip_address,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Details       map[string]any `json:"details"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Page struct {
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	Rows   []Record `json:"rows"`
}

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// where builds the WHERE clause and its positional arguments.
func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if !f.From.IsZero() {
		add("created_at >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To.UTC())
	}
	if actor := strings.TrimSpace(f.Actor); actor != "" {
		add("actor_username = $%d", actor)
	}
	if action := strings.TrimSpace(f.Action); action != "" {
		add(`action LIKE $%d ESCAPE '\'`, escapeLike(action)+"%")
	}
	if resourceType := strings.TrimSpace(f.ResourceType); resourceType != "" {
		add("resource_type = $%d", resourceType)
	}
	if result := strings.TrimSpace(f.Result); result != "" {
		add("result = $%d", result)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
