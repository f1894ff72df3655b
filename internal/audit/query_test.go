package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterWhereIgnoresBlankFilters(t *testing.T) {
	where, args := Filter{Actor: "   ", Action: "   ", ResourceType: "  ", Result: " "}.where()

	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestFilterWhereBuildsPositionalClauses(t *testing.T) {
	from := time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 25, 23, 59, 59, 0, time.UTC)

	where, args := Filter{
		From:         from,
		To:           to,
		Actor:        " admin ",
		Action:       "users",
		ResourceType: "user",
		Result:       "success",
	}.where()

	assert.Equal(t,
		` WHERE created_at >= $1 AND created_at <= $2 AND actor_username = $3 AND action LIKE $4 ESCAPE '\' AND resource_type = $5 AND result = $6`,
		where,
	)
	assert.Equal(t, []any{from, to, "admin", "users%", "user", "success"}, args)
}

func TestFilterWhereEscapesActionWildcards(t *testing.T) {
	_, args := Filter{Action: `100%_done\`}.where()
	assert.Equal(t, []any{`100\%\_done\\%`}, args)
}

func TestFilterNormalized(t *testing.T) {
	assert.Equal(t, DefaultPageLimit, Filter{}.normalized().Limit)
	assert.Equal(t, MaxPageLimit, Filter{Limit: 5000}.normalized().Limit)
	assert.Equal(t, 0, Filter{Offset: -3}.normalized().Offset)

	f := Filter{Limit: 25, Offset: 50}.normalized()
	assert.Equal(t, 25, f.Limit)
	assert.Equal(t, 50, f.Offset)
}
