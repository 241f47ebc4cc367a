package executor

import (
	"context"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/translator"
)

// Connection executes translated queries against one datasource.
type Connection interface {
	Execute(ctx context.Context, q translator.Query) (backend.Rows, error)
}
