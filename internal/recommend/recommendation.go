package recommend

// Outcome tells a successful recommendation apart from the two empty cases.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeEmptyQuery   Outcome = "empty_query"
	OutcomeNoCandidates Outcome = "no_candidates"
)

// State is a step of a single request.
type State string

const (
	StateIdle                   State = "idle"
	StateAwaitingProviderVector State = "awaiting_provider_vector"
	StateRanking                State = "ranking"
	StateNoCandidates           State = "no_candidates"
	StateDone                   State = "done"
	StateFailed                 State = "failed"
)

// Result is one recommended movie. Score is rounded to ScoreDecimals places for display;
// RawScore keeps full precision.
type Result struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
	RawScore float64 `json:"raw_score"`
}

// SkippedCandidate is a stored embedding left out of the ranking.
type SkippedCandidate struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Recommendation is the answer to one query.
type Recommendation struct {
	Query      string             `json:"query"`
	Outcome    Outcome            `json:"outcome"`
	Best       *Result            `json:"best,omitempty"`
	Top        []Result           `json:"top"`
	Skipped    []SkippedCandidate `json:"skipped,omitempty"`
	Considered int                `json:"considered"`
	States     []State            `json:"states"`
	TookMs     int64              `json:"took_ms"`
}

func (r *Recommendation) enter(s State) {
	r.States = append(r.States, s)
}
