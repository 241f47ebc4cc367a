// Package translator renders templates with bound parameters into
// backend-native executable queries. Translators perform no I/O.
package translator

import (
	"fmt"
	"net/url"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/template"
)

// Query is a backend-native executable query. Connections type-switch on the
// concrete kind they accept.
type Query interface {
	Backend() template.Backend
}

// SQLQuery is a parameterized SQL statement. Parameters are always bound as
// driver args, never interpolated into the statement text.
type SQLQuery struct {
	Statement string
	Args      []any
	kind      template.Backend
}

// Backend returns the target backend family (sql or duckdb).
func (q SQLQuery) Backend() template.Backend { return q.kind }

// ElasticQuery is a validated Elasticsearch request body.
type ElasticQuery struct {
	Index    string // comma-separated / wildcard index pattern
	Endpoint string // _search or _count
	Body     []byte // rendered, JSON-validated DSL
}

// Backend returns template.BackendElasticsearch.
func (ElasticQuery) Backend() template.Backend { return template.BackendElasticsearch }

// HTTPQuery addresses one curated source with bound query parameters.
type HTTPQuery struct {
	URL     string
	Params  url.Values
	Formats []string
}

// Backend returns template.BackendHTTP.
func (HTTPQuery) Backend() template.Backend { return template.BackendHTTP }

// Translator renders one backend family's templates.
type Translator interface {
	Translate(tpl template.Template, b *binding.Binding) (Query, error)
}

// translationErr wraps a rendering failure with the template id.
func translationErr(templateID, format string, args ...any) error {
	return fmt.Errorf("%w: template %q: %s", domain.ErrTranslation, templateID, fmt.Sprintf(format, args...))
}

// requireUsable rejects bindings that failed validation. Translators never
// render partial bindings.
func requireUsable(tpl template.Template, b *binding.Binding) error {
	if b == nil {
		return translationErr(tpl.ID(), "nil binding")
	}
	if b.TemplateID() != tpl.ID() {
		return translationErr(tpl.ID(), "binding belongs to template %q", b.TemplateID())
	}
	if !b.Usable() {
		return fmt.Errorf("%w: template %q has %d validation errors",
			domain.ErrParameterValidation, tpl.ID(), len(b.Errors()))
	}
	return nil
}
