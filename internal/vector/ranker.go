package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEmptyQuery is returned when Rank is called with a zero-length query vector.
var ErrEmptyQuery = errors.New("empty query vector")

// BruteForce scores every candidate against the query with cosine similarity.
//
// Mismatch policy: a candidate whose vector length differs from the query, or whose
// payload failed to decode (Candidate.Err), is left out of the result and reported in
// Ranking.Skipped. One bad record never fails the whole pass.
type BruteForce struct{}

// NewBruteForce returns a brute-force ranker.
func NewBruteForce() *BruteForce {
	return &BruteForce{}
}

// Rank returns candidates ordered by descending score, ties broken by ascending id.
// k <= 0 or k larger than the number of scored candidates returns all of them.
func (BruteForce) Rank(query []float32, candidates []Candidate, k int) (*Ranking, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	qNorm := L2Norm(query)
	res := &Ranking{}
	scored := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.Err != nil {
			res.Skipped = append(res.Skipped, Skipped{ID: c.ID, Err: c.Err})
			continue
		}
		if len(c.Vector) != len(query) {
			res.Skipped = append(res.Skipped, Skipped{
				ID:  c.ID,
				Err: fmt.Errorf("%w: candidate has %d, query has %d", ErrDimensionMismatch, len(c.Vector), len(query)),
			})
			continue
		}
		score := cosine(query, qNorm, c.Vector)
		if math.IsNaN(score) {
			res.Skipped = append(res.Skipped, Skipped{ID: c.ID, Err: fmt.Errorf("%w: non-finite components", ErrCorruptData)})
			continue
		}
		scored = append(scored, Match{ID: c.ID, Score: score})
	}
	sortMatches(scored)
	res.Considered = len(scored)
	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	res.Matches = scored
	return res, nil
}

func sortMatches(m []Match) {
	sort.Slice(m, func(i, j int) bool {
		if m[i].Score != m[j].Score {
			return m[i].Score > m[j].Score
		}
		return m[i].ID < m[j].ID
	})
}
