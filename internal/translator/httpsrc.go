package translator

import (
	"net/url"
	"strings"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/template"
)

// SourceResolver resolves curated datasource names. Knowledge satisfies it.
type SourceResolver interface {
	SourceByName(name string) (domain.Source, bool)
}

// HTTP resolves templates against the domain's curated source registry.
// Bound values become query parameters; the base URL always comes from the
// registry, never from the query or the binding.
type HTTP struct {
	sources SourceResolver
}

// NewHTTP creates a translator over one domain's sources.
func NewHTTP(sources SourceResolver) *HTTP {
	return &HTTP{sources: sources}
}

// Translate resolves the template's source and attaches bound values as
// query parameters.
func (t *HTTP) Translate(tpl template.Template, b *binding.Binding) (Query, error) {
	if err := requireUsable(tpl, b); err != nil {
		return nil, err
	}

	src, ok := t.sources.SourceByName(tpl.Source())
	if !ok {
		return nil, translationErr(tpl.ID(), "unknown source %q", tpl.Source())
	}

	params := url.Values{}
	for name, v := range b.Values() {
		if looksLikeURL(v.Text()) {
			return nil, translationErr(tpl.ID(), "parameter %q carries a URL; sources are curated", name)
		}
		params.Set(name, v.Text())
	}

	return HTTPQuery{URL: src.URL, Params: params, Formats: src.Formats}, nil
}

func looksLikeURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
