// Package extractor binds a template's declared parameters from raw query
// text: an LLM proposes candidates, local validation decides.
package extractor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/template"
	"github.com/arcware-ai/intentq/internal/logger"
)

// Service produces validated parameter bindings.
type Service struct {
	llm Extractor
	// now supplies the reference timestamp for relative dates. Injectable so
	// tests pin it.
	now func() time.Time
}

// New creates an extractor service using wall-clock reference time.
func New(llm Extractor) *Service {
	return &Service{llm: llm, now: time.Now}
}

// WithReferenceTime fixes the reference timestamp for relative-date
// resolution. Used by tests and replayed requests.
func (s *Service) WithReferenceTime(now func() time.Time) *Service {
	s.now = now
	return s
}

// Extract asks the LLM for parameter candidates and validates every value
// against the template's schema. Validation failures accumulate on the
// binding rather than aborting; missing optional parameters take their
// declared defaults. The returned binding is usable only when Usable().
func (s *Service) Extract(ctx context.Context, tpl template.Template, queryText string) (*binding.Binding, error) {
	b := binding.New(tpl.ID())
	params := tpl.Parameters()
	if len(params) == 0 {
		return b, nil
	}

	raw, err := s.llm.ExtractCandidates(ctx, buildPrompt(tpl, queryText))
	if err != nil {
		return nil, fmt.Errorf("extract candidates: %w", err)
	}

	ref := s.now()
	for _, p := range params {
		value, present := raw[p.Name]
		if !present || value == "" {
			if p.Default != "" {
				value = p.Default
			} else if p.Required {
				b.AddError(p.Name, "required parameter not found in query")
				continue
			} else {
				continue
			}
		}

		v, cerr := coerce(p, value, ref)
		if cerr != nil {
			b.AddError(p.Name, "%v", cerr)
			continue
		}
		b.Set(p.Name, v)
	}

	if !b.Usable() {
		logger.FromContext(ctx).Debug("Parameter binding has validation errors",
			zap.String("template_id", tpl.ID()),
			zap.Int("error_count", len(b.Errors())),
		)
	}
	return b, nil
}
