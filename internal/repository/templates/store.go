// Package templates owns the versioned template library and its embedding
// index. Each load produces a new immutable generation published behind an
// atomic pointer; readers hold their generation for the duration of a request
// and never observe a partially updated set.
package templates

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/template"
	"github.com/arcware-ai/intentq/internal/metrics"
)

// Generation is one immutable snapshot of the template set plus its
// embedding index. Every template has exactly one vector, built by the same
// load that produced the template.
type Generation struct {
	seq       uint64
	knowledge domain.Knowledge
	templates []template.Template // registration order
	byID      map[string]int
	vectors   [][]float32 // unit-normalized, index-aligned with templates
}

// Seq returns the generation sequence number (monotonic per store).
func (g *Generation) Seq() uint64 { return g.seq }

// Knowledge returns the domain configuration for this generation.
func (g *Generation) Knowledge() domain.Knowledge { return g.knowledge }

// Len returns the number of templates.
func (g *Generation) Len() int { return len(g.templates) }

// At returns the template at registration position i.
func (g *Generation) At(i int) template.Template { return g.templates[i] }

// VectorAt returns the unit-normalized embedding for the template at position i.
func (g *Generation) VectorAt(i int) []float32 { return g.vectors[i] }

// Get looks up a template by id.
func (g *Generation) Get(id string) (template.Template, error) {
	i, ok := g.byID[id]
	if !ok {
		return template.Template{}, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, id)
	}
	return g.templates[i], nil
}

// Store loads and serves the active template generation for one domain.
type Store struct {
	domainName   string
	configPath   string
	libraryPaths []string
	embedder     domain.Embedder
	logger       *zap.Logger

	gen atomic.Pointer[Generation]
	seq atomic.Uint64
}

// StoreConfig holds template store construction parameters.
type StoreConfig struct {
	DomainName   string
	ConfigPath   string
	LibraryPaths []string
	Embedder     domain.Embedder
	Logger       *zap.Logger
}

// NewStore creates an unloaded store. Call Load before serving.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		domainName:   cfg.DomainName,
		configPath:   cfg.ConfigPath,
		libraryPaths: cfg.LibraryPaths,
		embedder:     cfg.Embedder,
		logger:       cfg.Logger,
	}
}

// Load parses the domain config and template libraries, validates every
// template, computes embeddings, and atomically publishes the new generation.
// On failure the previously active generation (if any) keeps serving.
func (s *Store) Load(ctx context.Context) error {
	gen, err := s.build(ctx)
	if err != nil {
		metrics.TemplateReloadsTotal.WithLabelValues(s.domainName, "failure").Inc()
		return err
	}

	s.gen.Store(gen)
	metrics.TemplateReloadsTotal.WithLabelValues(s.domainName, "success").Inc()
	s.logger.Info("Template generation published",
		zap.String("domain", s.domainName),
		zap.Uint64("generation", gen.seq),
		zap.Int("templates", len(gen.templates)),
	)
	return nil
}

// Reload re-runs Load. It exists as a named operation for the admin endpoint
// and the file watcher.
func (s *Store) Reload(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return fmt.Errorf("reload templates: %w", err)
	}
	return nil
}

// Generation returns the active generation. Nil until the first Load.
func (s *Store) Generation() *Generation { return s.gen.Load() }

// DomainName returns the configured domain name.
func (s *Store) DomainName() string { return s.domainName }

// Get looks up a template in the active generation.
func (s *Store) Get(id string) (template.Template, error) {
	gen := s.gen.Load()
	if gen == nil {
		return template.Template{}, fmt.Errorf("%w: store not loaded", domain.ErrTemplateNotFound)
	}
	return gen.Get(id)
}

func (s *Store) build(ctx context.Context) (*Generation, error) {
	knowledge, err := loadDomainFile(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTemplateSchema, err)
	}

	var tpls []template.Template
	seen := make(map[string]bool)
	for _, path := range s.libraryPaths {
		loaded, err := loadLibraryFile(path)
		if err != nil {
			return nil, err
		}
		for _, t := range loaded {
			if seen[t.ID()] {
				return nil, domain.NewSchemaError(t.ID(), "template id declared twice across libraries")
			}
			seen[t.ID()] = true
			tpls = append(tpls, t)
		}
	}
	if len(tpls) == 0 {
		return nil, fmt.Errorf("%w: no templates in libraries %v", domain.ErrTemplateSchema, s.libraryPaths)
	}

	vectors, err := s.embedTemplates(ctx, knowledge, tpls)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(tpls))
	for i, t := range tpls {
		byID[t.ID()] = i
	}

	return &Generation{
		seq:       s.seq.Add(1),
		knowledge: knowledge,
		templates: tpls,
		byID:      byID,
		vectors:   vectors,
	}, nil
}

// embedTemplates embeds every example phrase plus the enriched template text
// and averages them into one unit vector per template.
func (s *Store) embedTemplates(
	ctx context.Context, knowledge domain.Knowledge, tpls []template.Template,
) ([][]float32, error) {
	var texts []string
	counts := make([]int, len(tpls))
	for i, t := range tpls {
		group := append([]string{embeddingText(t, knowledge)}, t.NLExamples()...)
		counts[i] = len(group)
		texts = append(texts, group...)
	}

	var res domain.BatchEmbeddingResult
	var err error
	if be, ok := s.embedder.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, s.embedder, texts)
	}
	if err != nil {
		return nil, fmt.Errorf("embed templates: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed templates: got %d vectors for %d texts", len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(tpls))
	pos := 0
	for i := range tpls {
		vectors[i] = normalize(average(res.Embeddings[pos : pos+counts[i]]))
		pos += counts[i]
	}
	return vectors, nil
}

// embeddingText builds the enriched index text for a template: description,
// examples, tags, spaced parameter names, semantic tags, and the domain
// vocabulary's synonyms of the primary entity.
func embeddingText(t template.Template, knowledge domain.Knowledge) string {
	parts := []string{
		t.Description(),
		strings.Join(t.NLExamples(), " "),
		strings.Join(t.Tags(), " "),
	}

	for _, p := range t.Parameters() {
		parts = append(parts, strings.ReplaceAll(p.Name, "_", " "))
	}

	sem := t.Semantic()
	parts = append(parts, sem.Action, sem.PrimaryEntity, sem.SecondaryEntity)
	parts = append(parts, sem.Qualifiers...)
	if sem.PrimaryEntity != "" {
		parts = append(parts, knowledge.Synonyms(sem.PrimaryEntity)...)
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func average(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := range v {
			out[i] += v[i]
		}
	}
	inv := 1.0 / float32(len(vecs))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
