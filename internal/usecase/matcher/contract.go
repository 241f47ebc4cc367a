package matcher

import (
	"context"

	"github.com/arcware-ai/intentq/internal/domain"
)

// Embedder vectorizes query text. Must be the same embedding function that
// built the template index, or similarity scores are meaningless.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
