package vector

// Candidate is a stored (id, vector) pair offered to a Ranker. Err is set when the
// stored payload could not be decoded; such candidates are skipped and reported.
type Candidate struct {
	ID     string
	Vector []float32
	Err    error
}

// Match is a single ranked hit. Score is cosine similarity in [-1, 1].
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Skipped records a candidate excluded from a ranking pass and why.
type Skipped struct {
	ID  string
	Err error
}

// Ranking is the result of one ranking pass.
type Ranking struct {
	Matches []Match
	Skipped []Skipped
	// Considered is the number of candidates that were scored.
	Considered int
}

// Ranker orders candidates by similarity to a query. Implementations must be pure
// functions of their inputs.
type Ranker interface {
	Rank(query []float32, candidates []Candidate, k int) (*Ranking, error)
}

const (
	// DefaultBestK is the number of matches for a "best match" lookup.
	DefaultBestK = 1
	// DefaultTopK is the size of the "top list".
	DefaultTopK = 3
)
