package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudvienna/internal/observability"
)

type fakeLister struct {
	filter Filter
	calls  int
	page   Page
	err    error
}

func (f *fakeLister) List(_ context.Context, filter Filter) (Page, error) {
	f.calls++
	f.filter = filter
	if f.err != nil {
		return Page{}, f.err
	}
	return f.page, nil
}

func serveList(repo *fakeLister, target string) *httptest.ResponseRecorder {
	h := NewHandler(repo, observability.NewLoggerTo(io.Discard))
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListPassesFilters(t *testing.T) {
	created := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	repo := &fakeLister{page: Page{
		Total:  2,
		Limit:  10,
		Offset: 0,
		Rows: []Record{
			{ID: 102, Actor: "admin", Action: "users.create", Result: ResultSuccess, Details: map[string]any{"role": "coach"}, CreatedAt: created},
			{ID: 101, Actor: "admin", Action: "users.deactivate", Result: ResultSuccess, Details: map[string]any{}, CreatedAt: created},
		},
	}}

	rec := serveList(repo, "/admin/audit-logs?date_from=2026-02-25T00:00:00&date_to=2026-02-25&actor_username=admin&action=users&resource_type=user&result=success&limit=10&offset=0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	assert.Equal(t, time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC), repo.filter.From)
	assert.Equal(t, time.Date(2026, 2, 25, 23, 59, 59, 999999999, time.UTC), repo.filter.To)
	assert.Equal(t, "admin", repo.filter.Actor)
	assert.Equal(t, "users", repo.filter.Action)
	assert.Equal(t, "user", repo.filter.ResourceType)
	assert.Equal(t, "success", repo.filter.Result)
	assert.Equal(t, 10, repo.filter.Limit)

	var body struct {
		Total int64            `json:"total"`
		Rows  []map[string]any `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(2), body.Total)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "users.create", body.Rows[0]["action"])
	assert.Equal(t, "admin", body.Rows[0]["actor_username"])
}

func TestListUsesLimitAndOffset(t *testing.T) {
	repo := &fakeLister{page: Page{Limit: 25, Offset: 50, Rows: []Record{}}}

	rec := serveList(repo, "/admin/audit-logs?limit=25&offset=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, repo.filter.Limit)
	assert.Equal(t, 50, repo.filter.Offset)
	assert.JSONEq(t, `{"total":0,"limit":25,"offset":50,"rows":[]}`, rec.Body.String())
}

func TestListRejectsBadParameters(t *testing.T) {
	targets := []string{
		"/admin/audit-logs?limit=0",
		"/admin/audit-logs?limit=201",
		"/admin/audit-logs?limit=ten",
		"/admin/audit-logs?offset=-1",
		"/admin/audit-logs?date_from=yesterday",
		"/admin/audit-logs?date_to=2026-13-01",
		"/admin/audit-logs?date_from=2026-03-01&date_to=2026-02-01",
	}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			repo := &fakeLister{}
			rec := serveList(repo, target)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Zero(t, repo.calls)
		})
	}
}

func TestListStoreFailure(t *testing.T) {
	repo := &fakeLister{err: errors.New("connection reset")}

	rec := serveList(repo, "/admin/audit-logs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
