package retrieve

import (
	"context"

	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/match"
	"github.com/arcware-ai/intentq/internal/domain/template"
	"github.com/arcware-ai/intentq/internal/repository/templates"
)

// Matcher ranks templates against a natural-language query.
type Matcher interface {
	Match(ctx context.Context, gen *templates.Generation, queryText string, topK int, threshold float64) ([]match.Candidate, error)
}

// Extractor binds template parameters from a natural-language query.
type Extractor interface {
	Extract(ctx context.Context, tpl template.Template, queryText string) (*binding.Binding, error)
}
