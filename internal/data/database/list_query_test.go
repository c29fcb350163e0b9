package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListQuery_Build(t *testing.T) {
	kind := "logout"
	q := NewListQuery("access_events", "id", "kind").
		Where(Where("kind", Equal, kind)).
		Where(Where("client_id", Equal, nil)).
		Where(Where("kind", In, []string{})).
		Order("created_at", true).
		Page(20, 40)

	sql, args := q.Build()
	assert.Equal(t,
		`SELECT "id", "kind" FROM "access_events" WHERE "kind" = $1 ORDER BY "created_at" DESC LIMIT $2 OFFSET $3`,
		sql)
	assert.Equal(t, []any{"logout", 20, 40}, args)
}

func TestListQuery_NoPaging(t *testing.T) {
	sql, args := NewListQuery("t").Where(Where("roles", In, []string{"a", "b"})).Build()
	assert.Equal(t, `SELECT * FROM "t" WHERE "roles" = ANY($1)`, sql)
	assert.Equal(t, []any{[]string{"a", "b"}}, args)
}

func TestListQuery_QuotesIdentifiers(t *testing.T) {
	sql, _ := NewListQuery(`events"; DROP TABLE x; --`, "e.id").Build()
	assert.Equal(t, `SELECT "e"."id" FROM "events""; DROP TABLE x; --"`, sql)
}
