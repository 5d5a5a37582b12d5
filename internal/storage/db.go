// Package storage persists stations and readings through idempotent
// multi-row upserts. The Store is written against a small DB capability so
// the same statements run on PostgreSQL (pgx) and SQLite (modernc).
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rows is the subset of a result cursor the Store reads from.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// DB executes statements against one relational backend.
type DB interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Ping(ctx context.Context) error
	Dialect() Dialect
	Close()
}

// Dialect captures the differences between the supported backends.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder returns the positional parameter marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// maxParams returns the bound-parameter limit a single statement must stay under.
func (d Dialect) maxParams() int {
	if d == SQLite {
		// Older SQLite builds cap host parameters at 999.
		return 999
	}
	return 65535
}

// sqliteTimeLayout is fixed width so text comparison orders instants.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// timeArg converts an instant to the argument type the backend stores.
func (d Dialect) timeArg(t time.Time) any {
	if d == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// values renders "(p1, p2, ...), (...)" for rows tuples of width cols.
func (d Dialect) values(rows, cols int) string {
	var b strings.Builder
	n := 1
	for r := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// timeValue scans recorded_at from either backend.
type timeValue struct {
	t time.Time
}

func (v *timeValue) Scan(src any) error {
	switch s := src.(type) {
	case time.Time:
		v.t = s.UTC()
		return nil
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("scan time: %w", err)
	}
	v.t = t.UTC()
	return nil
}
