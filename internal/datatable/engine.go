package datatable

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// TimeLayout is used when a time column is rendered for searching.
const TimeLayout = "2006-01-02 15:04:05"

// Accessor extracts the value of one column from a row. Supported value
// types are string, integers, bool, time.Time and *time.Time.
type Accessor[T any] func(T) any

// Columns whitelists the column keys a client may filter and order by.
type Columns[T any] map[string]Accessor[T]

type matcher func(string) bool

type boundColumn[T any] struct {
	access Accessor[T]
	match  matcher
}

// Apply runs req against rows. The input slice is not modified.
func Apply[T any](req Request, rows []T, cols Columns[T]) Response[T] {
	// A Caser carries state and must not be shared across goroutines.
	folder := cases.Fold()
	resp := Response[T]{Draw: req.Draw, RecordsTotal: len(rows)}

	var columnFilters []boundColumn[T]
	var globalColumns []Accessor[T]
	for _, c := range req.Columns {
		access, ok := cols[c.Data]
		if !ok || !c.Searchable {
			continue
		}
		globalColumns = append(globalColumns, access)
		if strings.TrimSpace(c.Search.Value) != "" {
			columnFilters = append(columnFilters, boundColumn[T]{access: access, match: newMatcher(c.Search, folder)})
		}
	}
	var global matcher
	if strings.TrimSpace(req.Search.Value) != "" {
		global = newMatcher(req.Search, folder)
	}

	filtered := make([]T, 0, len(rows))
	for _, row := range rows {
		if !matchesColumns(row, columnFilters) {
			continue
		}
		if global != nil && !matchesAny(row, globalColumns, global) {
			continue
		}
		filtered = append(filtered, row)
	}
	resp.RecordsFiltered = len(filtered)

	sortRows(filtered, req, cols, folder)
	resp.Data = page(filtered, req.Start, req.Length)
	return resp
}

func matchesColumns[T any](row T, filters []boundColumn[T]) bool {
	for _, f := range filters {
		if !f.match(text(f.access(row))) {
			return false
		}
	}
	return true
}

func matchesAny[T any](row T, accessors []Accessor[T], match matcher) bool {
	for _, access := range accessors {
		if match(text(access(row))) {
			return true
		}
	}
	return false
}

func newMatcher(s Search, folder cases.Caser) matcher {
	term := strings.TrimSpace(s.Value)
	if s.Regex {
		if re, err := regexp.Compile("(?i)" + term); err == nil {
			return re.MatchString
		}
	}
	needle := folder.String(term)
	return func(v string) bool {
		return strings.Contains(folder.String(v), needle)
	}
}

type orderKey[T any] struct {
	access Accessor[T]
	desc   bool
}

func sortRows[T any](rows []T, req Request, cols Columns[T], folder cases.Caser) {
	var keys []orderKey[T]
	for _, o := range req.Order {
		if o.Column < 0 || o.Column >= len(req.Columns) {
			continue
		}
		c := req.Columns[o.Column]
		access, ok := cols[c.Data]
		if !ok || !c.Orderable {
			continue
		}
		keys = append(keys, orderKey[T]{access: access, desc: strings.EqualFold(o.Dir, "desc")})
	}
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(rows, func(a, b T) int {
		for _, k := range keys {
			c := compare(k.access(a), k.access(b), folder)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func page[T any](rows []T, start, length int) []T {
	if start < 0 {
		start = 0
	}
	if start >= len(rows) {
		return []T{}
	}
	end := len(rows)
	if length > 0 && length < end-start {
		end = start + length
	}
	out := make([]T, end-start)
	copy(out, rows[start:end])
	return out
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(TimeLayout)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(TimeLayout)
	default:
		return ""
	}
}

func compare(a, b any, folder cases.Caser) int {
	if ai, ok := integer(a); ok {
		if bi, ok := integer(b); ok {
			return cmp.Compare(ai, bi)
		}
	}
	if at, ok := timestamp(a); ok {
		if bt, ok := timestamp(b); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(folder.String(text(a)), folder.String(text(b)))
}

func integer(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	}
	return 0, false
}

// timestamp treats a nil *time.Time as the zero time so empty values sort first.
func timestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return time.Time{}, true
		}
		return *val, true
	}
	return time.Time{}, false
}
