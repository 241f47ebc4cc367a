package translator

import (
	"errors"
	"testing"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/template"
)

type stubResolver struct {
	sources map[string]domain.Source
}

func (r *stubResolver) SourceByName(name string) (domain.Source, bool) {
	s, ok := r.sources[name]
	return s, ok
}

func httpTemplate(t *testing.T, source string) template.Template {
	t.Helper()
	tpl, err := template.New("tpl", "", []string{"x"}, "",
		[]template.Parameter{{Name: "q", Type: template.TypeString, Required: true}},
		nil, template.SemanticTags{}, template.BackendHTTP, "", "", source)
	if err != nil {
		t.Fatalf("build template: %v", err)
	}
	return tpl
}

func TestHTTPTranslate_ResolvesCuratedSource(t *testing.T) {
	resolver := &stubResolver{sources: map[string]domain.Source{
		"runbook-index": {
			Name:    "runbook-index",
			URL:     "https://runbooks.example.internal/api/search",
			Formats: []string{"json"},
		},
	}}

	b := binding.New("tpl")
	b.Set("q", binding.StringValue("database failover"))

	q, err := NewHTTP(resolver).Translate(httpTemplate(t, "runbook-index"), b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hq := q.(HTTPQuery)
	if hq.URL != "https://runbooks.example.internal/api/search" {
		t.Errorf("unexpected url: %q", hq.URL)
	}
	if hq.Params.Get("q") != "database failover" {
		t.Errorf("unexpected params: %v", hq.Params)
	}
	if len(hq.Formats) != 1 || hq.Formats[0] != "json" {
		t.Errorf("unexpected formats: %v", hq.Formats)
	}
}

func TestHTTPTranslate_UnknownSourceRejected(t *testing.T) {
	b := binding.New("tpl")
	b.Set("q", binding.StringValue("x"))

	_, err := NewHTTP(&stubResolver{}).Translate(httpTemplate(t, "runbook-index"), b)
	if !errors.Is(err, domain.ErrTranslation) {
		t.Errorf("expected ErrTranslation, got %v", err)
	}
}

func TestHTTPTranslate_URLValueRejected(t *testing.T) {
	resolver := &stubResolver{sources: map[string]domain.Source{
		"runbook-index": {Name: "runbook-index", URL: "https://runbooks.example.internal/api/search"},
	}}

	b := binding.New("tpl")
	b.Set("q", binding.StringValue("https://evil.example.com/exfil"))

	_, err := NewHTTP(resolver).Translate(httpTemplate(t, "runbook-index"), b)
	if !errors.Is(err, domain.ErrTranslation) {
		t.Errorf("expected ErrTranslation for URL-shaped value, got %v", err)
	}
}
