package matcher

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/match"
	"github.com/arcware-ai/intentq/internal/repository/templates"
)

// --- Mocks ---

type hashEmbedder struct {
	err error
}

func (e *hashEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	const dim = 16
	v := make([]float32, dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%dim]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range v {
			v[i] /= n
		}
	}
	return domain.EmbeddingResult{Embedding: v}, nil
}

const matcherDomainYAML = `
domain_name: observability
no_results_response: "Nothing found."
error_response: "Data unavailable."
`

const matcherLibraryYAML = `
templates:
  - id: error-logs
    description: error logs for a service
    backend: sql
    query: "SELECT * FROM logs WHERE service = %(service)s"
    nl_examples:
      - show me recent errors from the payments service
      - list error log lines for billing
    parameters:
      - name: service
        type: string
        required: true
    tags: [logs, errors]
  - id: latency-trend
    description: latency percentile trend for a service
    backend: sql
    query: "SELECT * FROM metrics WHERE service = %(service)s"
    nl_examples:
      - p95 latency trend for checkout over the last month
      - how has api latency changed recently
    parameters:
      - name: service
        type: string
        required: true
    tags: [metrics, latency]
`

func loadGeneration(t *testing.T) *templates.Generation {
	t.Helper()
	dir := t.TempDir()
	domainPath := filepath.Join(dir, "domain.yaml")
	libPath := filepath.Join(dir, "templates.yaml")
	if err := os.WriteFile(domainPath, []byte(matcherDomainYAML), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(libPath, []byte(matcherLibraryYAML), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store := templates.NewStore(templates.StoreConfig{
		DomainName:   "observability",
		ConfigPath:   domainPath,
		LibraryPaths: []string{libPath},
		Embedder:     &hashEmbedder{},
		Logger:       zap.NewNop(),
	})
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	return store.Generation()
}

// --- Tests ---

func TestMatch_ExamplePhraseFindsItsTemplate(t *testing.T) {
	gen := loadGeneration(t)
	svc := New(&hashEmbedder{})

	got, err := svc.Match(context.Background(),
		gen, "show me recent errors from the payments service", 5, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if got[0].TemplateID() != "error-logs" {
		t.Errorf("expected error-logs first, got %q (%.3f)", got[0].TemplateID(), got[0].Similarity())
	}
	if got[0].Rank() != 0 {
		t.Errorf("expected rank 0 for best candidate, got %d", got[0].Rank())
	}
}

func TestMatch_ThresholdFilters(t *testing.T) {
	gen := loadGeneration(t)
	svc := New(&hashEmbedder{})
	query := "show me recent errors from the payments service"

	low, err := svc.Match(context.Background(), gen, query, 5, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	high, err := svc.Match(context.Background(), gen, query, 5, 0.995)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(high) >= len(low) && len(high) != 0 {
		t.Errorf("raising the threshold must not admit more candidates: low=%d high=%d", len(low), len(high))
	}
	for _, c := range low {
		if c.Similarity() < 0 || c.Similarity() > 1 {
			t.Errorf("similarity out of range: %v", c.Similarity())
		}
	}
}

func TestMatch_ThresholdSubset(t *testing.T) {
	gen := loadGeneration(t)
	svc := New(&hashEmbedder{})
	query := "show me recent errors from the payments service"

	low, err := svc.Match(context.Background(), gen, query, 5, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	high, err := svc.Match(context.Background(), gen, query, 5, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Raising the threshold must select a subset with unchanged scores, not
	// a different candidate set.
	lowScores := make(map[string]float64, len(low))
	for _, c := range low {
		lowScores[c.TemplateID()] = c.Similarity()
	}
	for _, c := range high {
		sim, ok := lowScores[c.TemplateID()]
		if !ok {
			t.Errorf("candidate %q admitted at 0.5 but not at 0.0", c.TemplateID())
			continue
		}
		if sim != c.Similarity() {
			t.Errorf("candidate %q changed score across thresholds: %v vs %v", c.TemplateID(), sim, c.Similarity())
		}
		if c.Similarity() < 0.5 {
			t.Errorf("candidate %q below the threshold: %v", c.TemplateID(), c.Similarity())
		}
	}
}

func TestMatch_TopKTruncates(t *testing.T) {
	gen := loadGeneration(t)
	svc := New(&hashEmbedder{})

	got, err := svc.Match(context.Background(), gen, "errors and latency for a service", 1, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected top-k truncation to 1, got %d", len(got))
	}
}

func TestMatch_Deterministic(t *testing.T) {
	gen := loadGeneration(t)
	svc := New(&hashEmbedder{})
	query := "recent errors from payments"

	first, err := svc.Match(context.Background(), gen, query, 5, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.Match(context.Background(), gen, query, 5, 0.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("nondeterministic candidate count")
		}
		for j := range again {
			if again[j].TemplateID() != first[j].TemplateID() || again[j].Similarity() != first[j].Similarity() {
				t.Fatalf("nondeterministic ordering at %d", j)
			}
		}
	}
}

func TestMatch_EmptyGeneration(t *testing.T) {
	svc := New(&hashEmbedder{})
	got, err := svc.Match(context.Background(), nil, "anything", 5, 0.5)
	if err != nil || got != nil {
		t.Errorf("expected nil, nil for missing generation, got %v, %v", got, err)
	}
}

func TestMatch_EmbedderFailure(t *testing.T) {
	gen := loadGeneration(t)
	svc := New(&hashEmbedder{err: errors.New("provider down")})

	if _, err := svc.Match(context.Background(), gen, "q", 5, 0.5); err == nil {
		t.Fatal("expected error from embedder failure")
	}
}

func TestRerank_BoundedTagBoost(t *testing.T) {
	gen := loadGeneration(t)

	// latency-trend leads by less than the max boost; the query's tag words
	// favor error-logs.
	in := []match.Candidate{
		match.New("latency-trend", 0.80, 0),
		match.New("error-logs", 0.78, 1),
	}
	out := Rerank(gen, in, "logs with errors from payments")
	if out[0].TemplateID() != "error-logs" {
		t.Errorf("expected tag overlap to promote error-logs, got %q", out[0].TemplateID())
	}

	// A lead wider than the max boost can never be overturned.
	in = []match.Candidate{
		match.New("latency-trend", 0.90, 0),
		match.New("error-logs", 0.78, 1),
	}
	out = Rerank(gen, in, "logs with errors from payments")
	if out[0].TemplateID() != "latency-trend" {
		t.Errorf("rerank overturned a decisive lead: %q first", out[0].TemplateID())
	}
}

func TestRerank_ClampsSimilarityAtOne(t *testing.T) {
	gen := loadGeneration(t)

	// Full tag overlap on a near-perfect score must not push past 1.
	in := []match.Candidate{
		match.New("error-logs", 0.98, 0),
		match.New("latency-trend", 0.50, 1),
	}
	out := Rerank(gen, in, "logs with errors")
	for _, c := range out {
		if c.Similarity() > 1 {
			t.Errorf("candidate %q boosted past 1: %v", c.TemplateID(), c.Similarity())
		}
	}
	if out[0].TemplateID() != "error-logs" || out[0].Similarity() != 1 {
		t.Errorf("expected error-logs clamped to 1, got %q at %v", out[0].TemplateID(), out[0].Similarity())
	}
}
