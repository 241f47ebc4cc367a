// Package matcher ranks templates by relevance to a free-text query.
package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/arcware-ai/intentq/internal/domain/match"
	"github.com/arcware-ai/intentq/internal/repository/templates"
)

// Service scores a query against a template generation's embedding index.
// The service is stateless; top-k and threshold are per-call so concurrent
// callers with different settings never interfere.
type Service struct {
	embed Embedder
}

// New creates a matcher service.
func New(embed Embedder) *Service {
	return &Service{embed: embed}
}

// Match embeds queryText and returns the top-k candidates with cosine
// similarity >= threshold, sorted by descending similarity. Ties keep
// template registration order. An empty result means "no match", not an
// error. Results are deterministic for an unchanged generation.
func (s *Service) Match(
	ctx context.Context,
	gen *templates.Generation,
	queryText string,
	topK int,
	threshold float64,
) ([]match.Candidate, error) {
	if gen == nil || gen.Len() == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 1
	}

	res, err := s.embed.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	query := normalize(res.Embedding)

	candidates := make([]match.Candidate, 0, gen.Len())
	for i := 0; i < gen.Len(); i++ {
		score := similarity(query, gen.VectorAt(i))
		if score < threshold {
			continue
		}
		candidates = append(candidates, match.New(gen.At(i).ID(), score, 0))
	}

	// Stable sort: equal scores keep registration order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity() > candidates[j].Similarity()
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	for i := range candidates {
		candidates[i] = candidates[i].WithRank(i)
	}
	return candidates, nil
}

// similarity is the cosine similarity of a normalized query against a
// normalized index vector, clamped into [0,1].
func similarity(query, indexed []float32) float64 {
	if len(query) != len(indexed) {
		return 0
	}
	var dot float64
	for i := range query {
		dot += float64(query[i]) * float64(indexed[i])
	}
	if dot < 0 {
		return 0
	}
	if dot > 1 {
		return 1
	}
	return dot
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
