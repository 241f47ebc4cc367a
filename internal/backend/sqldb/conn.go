// Package sqldb executes translated relational queries through database/sql.
// It serves both the sqlite and duckdb adapter families; the driver is chosen
// by the caller that opens the pool.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/translator"
)

// Conn wraps one database/sql pool.
type Conn struct {
	db *sql.DB
}

// Open creates a pool for a registered driver.
func Open(driver, dsn string) (*Conn, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", driver, err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Conn{db: db}, nil
}

// New wraps an already opened pool. Used by tests with sqlmock.
func New(db *sql.DB) *Conn { return &Conn{db: db} }

// Execute runs one parameterized statement and scans all rows.
func (c *Conn) Execute(ctx context.Context, q translator.Query) (backend.Rows, error) {
	sq, ok := q.(translator.SQLQuery)
	if !ok {
		return nil, fmt.Errorf("%w: relational adapter got %T", domain.ErrTranslation, q)
	}

	rows, err := c.db.QueryContext(ctx, sq.Statement, sq.Args...)
	if err != nil {
		return nil, fmt.Errorf("execute statement: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out backend.Rows
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalize(cells[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Ping verifies the pool.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	return nil
}

// Close releases the pool.
func (c *Conn) Close() error { return c.db.Close() }

// normalize converts driver byte slices into strings so rows serialize to
// readable JSON.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
