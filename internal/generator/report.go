package generator

import (
	"fmt"
	"sort"
	"time"
)

// Mode selects which movies a run targets.
type Mode string

const (
	// ModeAll regenerates every movie's embedding.
	ModeAll Mode = "all"
	// ModeMissing only generates embeddings for movies that have none.
	ModeMissing Mode = "missing"
)

// ParseMode parses "all" or "missing"; empty means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeMissing:
		return ModeMissing, nil
	default:
		return "", fmt.Errorf("invalid mode %q (supported: all, missing)", s)
	}
}

// Status is the outcome of one item.
type Status string

const (
	StatusStored  Status = "stored"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ItemResult is the outcome of generating one movie's embedding.
type ItemResult struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     Status `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	Err        error  `json:"-"`
}

// Failure records why one movie's embedding could not be generated.
type Failure struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Report summarizes a run. Succeeded + Failed + Skipped == Total.
type Report struct {
	Mode       Mode          `json:"mode"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Failures   []Failure     `json:"failures"`
	SkippedIDs []string      `json:"skipped_ids,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

func (r *Report) add(res ItemResult) {
	switch res.Status {
	case StatusStored:
		r.Succeeded++
	case StatusSkipped:
		r.Skipped++
		r.SkippedIDs = append(r.SkippedIDs, res.ID)
	default:
		r.Failed++
		r.Failures = append(r.Failures, Failure{ID: res.ID, Title: res.Title, Reason: res.Reason, Err: res.Err})
	}
}

// finish orders collected items by id so concurrent runs report identically.
func (r *Report) finish(d time.Duration) {
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].ID < r.Failures[j].ID })
	sort.Strings(r.SkippedIDs)
	if r.Failures == nil {
		r.Failures = []Failure{}
	}
	r.Duration = d
}
