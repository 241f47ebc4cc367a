// Package backend defines the datasource connection contract shared by the
// relational, Elasticsearch, and HTTP adapters.
package backend

import (
	"context"

	"github.com/arcware-ai/intentq/internal/translator"
)

// Rows is the backend-neutral result shape. Every adapter normalizes its
// native response into a row list before it leaves the adapter.
type Rows = []map[string]any

// Connection executes translated queries against one live datasource.
type Connection interface {
	// Execute runs one translated query. The query's concrete type must match
	// the adapter family; a mismatch is a programming error and is reported
	// as a translation failure, not a panic.
	Execute(ctx context.Context, q translator.Query) (Rows, error)

	// Ping verifies the datasource is reachable.
	Ping(ctx context.Context) error

	Close() error
}
