package associations

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	sql  string
	args []any
}

// fakeQuerier models one join table and its related table in memory and
// records every statement it receives.
type fakeQuerier struct {
	related   map[int64]string
	links     map[int64][]int64
	insertErr error
	calls     []call
	execs     int
}

func newFakeQuerier(related ...int64) *fakeQuerier {
	q := &fakeQuerier{related: map[int64]string{}, links: map[int64][]int64{}}
	for _, id := range related {
		q.related[id] = fmt.Sprintf("Related %d", id)
	}
	return q
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.calls = append(q.calls, call{sql: sql, args: args})
	q.execs++
	owner := args[0].(int64)
	ids := args[1].([]int64)

	switch {
	case strings.HasPrefix(sql, "DELETE"):
		// NOT (x = ANY(NULL)) is never true, so a nil array keeps every row.
		if ids == nil {
			return pgconn.CommandTag{}, nil
		}
		q.links[owner] = slices.DeleteFunc(q.links[owner], func(id int64) bool {
			return !slices.Contains(ids, id)
		})
	case strings.HasPrefix(sql, "INSERT"):
		if q.insertErr != nil {
			return pgconn.CommandTag{}, q.insertErr
		}
		for _, id := range ids {
			if !slices.Contains(q.links[owner], id) {
				q.links[owner] = append(q.links[owner], id)
			}
		}
		slices.Sort(q.links[owner])
	default:
		return pgconn.CommandTag{}, fmt.Errorf("unexpected exec %q", sql)
	}
	return pgconn.CommandTag{}, nil
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.calls = append(q.calls, call{sql: sql, args: args})

	switch {
	case strings.Contains(sql, "= ANY($1)"):
		rows := &fakeRows{columns: []string{"id"}}
		for _, id := range args[0].([]int64) {
			if _, ok := q.related[id]; ok {
				rows.values = append(rows.values, []any{id})
			}
		}
		return rows, nil
	case strings.HasPrefix(sql, "SELECT id, name"):
		rows := &fakeRows{columns: []string{"id", "name", "created_at", "updated_at"}}
		ids := make([]int64, 0, len(q.related))
		for id := range q.related {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for _, id := range ids {
			rows.values = append(rows.values, []any{id, q.related[id], stamp, stamp})
		}
		return rows, nil
	default:
		rows := &fakeRows{columns: []string{"related"}}
		for _, id := range q.links[args[0].(int64)] {
			rows.values = append(rows.values, []any{id})
		}
		return rows, nil
	}
}

func (q *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("QueryRow is not used by the association manager")
}

// fakeRows embeds pgx.Rows so only the methods scany reads need bodies.
type fakeRows struct {
	pgx.Rows
	columns []string
	values  [][]any
	pos     int
}

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		out[i] = pgconn.FieldDescription{Name: c}
	}
	return out
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.values[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() {}
