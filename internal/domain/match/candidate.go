// Package match defines intent-match candidates produced by the matcher.
package match

// Candidate is one ranked template match. Candidates are ordered by
// descending similarity; ties keep template registration order.
type Candidate struct {
	templateID string
	similarity float64
	rank       int
}

// New creates a match candidate.
func New(templateID string, similarity float64, rank int) Candidate {
	return Candidate{templateID: templateID, similarity: similarity, rank: rank}
}

// TemplateID returns the matched template id.
func (c Candidate) TemplateID() string { return c.templateID }

// Similarity returns the cosine similarity in [0,1].
func (c Candidate) Similarity() float64 { return c.similarity }

// Rank returns the zero-based position in the ranked list.
func (c Candidate) Rank() int { return c.rank }

// WithRank returns a copy at a new rank, keeping score and id.
func (c Candidate) WithRank(rank int) Candidate {
	c.rank = rank
	return c
}

// WithSimilarity returns a copy with an adjusted similarity score.
func (c Candidate) WithSimilarity(score float64) Candidate {
	c.similarity = score
	return c
}
