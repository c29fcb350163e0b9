// Package database builds parameterised list queries with sanitised identifiers.
package database

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Op is a comparison operator usable in a Condition.
type Op string

const (
	Equal              Op = "="
	NotEqual           Op = "!="
	LessThan           Op = "<"
	GreaterThanOrEqual Op = ">="
	In                 Op = "IN"
)

// Condition is one predicate joined with AND.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Where returns a condition on field.
func Where(field string, op Op, value any) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

// ListQuery describes a SELECT over one table.
type ListQuery struct {
	Table      string
	Columns    []string
	Conditions []Condition
	OrderBy    string
	Desc       bool
	// Limit and Offset are omitted when negative.
	Limit  int
	Offset int
}

// NewListQuery returns a query with no limit or offset.
func NewListQuery(table string, columns ...string) *ListQuery {
	return &ListQuery{Table: table, Columns: columns, Limit: -1, Offset: -1}
}

// Where appends a condition. Nil pointers and empty IN lists are ignored.
func (q *ListQuery) Where(c Condition) *ListQuery {
	q.Conditions = append(q.Conditions, c)
	return q
}

// Order sets the ordering column.
func (q *ListQuery) Order(column string, desc bool) *ListQuery {
	q.OrderBy, q.Desc = column, desc
	return q
}

// Page sets limit and offset.
func (q *ListQuery) Page(limit, offset int) *ListQuery {
	q.Limit, q.Offset = limit, offset
	return q
}

// Build renders the SQL text and its positional arguments.
func (q *ListQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		cols := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			cols[i] = ident(c)
		}
		b.WriteString(strings.Join(cols, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(ident(q.Table))

	var args []any
	var preds []string
	for _, c := range q.Conditions {
		p, a := predicate(c, len(args)+1)
		if p == "" {
			continue
		}
		preds = append(preds, p)
		args = append(args, a...)
	}
	if len(preds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(preds, " AND "))
	}

	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(ident(q.OrderBy))
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit >= 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.Offset >= 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func predicate(c Condition, next int) (string, []any) {
	if c.Field == "" || c.Value == nil {
		return "", nil
	}
	switch c.Op {
	case Equal, NotEqual, LessThan, GreaterThanOrEqual:
		return fmt.Sprintf("%s %s $%d", ident(c.Field), c.Op, next), []any{c.Value}
	case In:
		vals, ok := c.Value.([]string)
		if !ok || len(vals) == 0 {
			return "", nil
		}
		return fmt.Sprintf("%s = ANY($%d)", ident(c.Field), next), []any{vals}
	default:
		return "", nil
	}
}

// ident quotes a possibly qualified identifier such as "table.column".
func ident(s string) string {
	return pgx.Identifier(strings.Split(s, ".")).Sanitize()
}
