package matcher

import (
	"math"
	"sort"
	"strings"

	"github.com/arcware-ai/intentq/internal/domain/match"
	"github.com/arcware-ai/intentq/internal/repository/templates"
)

// maxBoost bounds the rerank adjustment: a reranked candidate can never
// overtake one that beats it by more than this margin.
const maxBoost = 0.05

// Rerank nudges candidate scores by exact keyword overlap between the query
// and each template's tags. Deterministic: stable sort, bounded boost.
func Rerank(gen *templates.Generation, candidates []match.Candidate, queryText string) []match.Candidate {
	if len(candidates) < 2 {
		return candidates
	}

	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(queryText)) {
		words[strings.Trim(w, ".,!?\"'")] = true
	}

	out := make([]match.Candidate, len(candidates))
	for i, c := range candidates {
		tpl, err := gen.Get(c.TemplateID())
		if err != nil {
			out[i] = c
			continue
		}
		tags := tpl.Tags()
		if len(tags) == 0 {
			out[i] = c
			continue
		}
		var hits int
		for _, tag := range tags {
			if words[strings.ToLower(tag)] {
				hits++
			}
		}
		boost := maxBoost * float64(hits) / float64(len(tags))
		out[i] = c.WithSimilarity(math.Min(c.Similarity()+boost, 1))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity() > out[j].Similarity()
	})
	for i := range out {
		out[i] = out[i].WithRank(i)
	}
	return out
}
