// Package cli provides output helpers for the movierec command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/movierec/internal/generator"
	"github.com/hyperjump/movierec/internal/recommend"
	"github.com/hyperjump/movierec/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecommendation writes rec to w in the given format.
func WriteRecommendation(w io.Writer, rec *recommend.Recommendation, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rec)
	}
	switch rec.Outcome {
	case recommend.OutcomeEmptyQuery:
		fmt.Fprintln(w, "Empty query: nothing to recommend.")
		return nil
	case recommend.OutcomeNoCandidates:
		fmt.Fprintln(w, "No movies with embeddings to compare against. Run \"movierec generate\" first.")
		writeSkipped(w, rec.Skipped)
		return nil
	}
	fmt.Fprintf(w, "\nCompared against %d movies in %dms\n\n", rec.Considered, rec.TookMs)
	if rec.Best != nil {
		fmt.Fprintf(w, "Best match: %s (score: %.4f)\n\n", displayTitle(rec.Best.Title, rec.Best.ID), rec.Best.Score)
	}
	fmt.Fprintf(w, "Top %d:\n", len(rec.Top))
	for i, r := range rec.Top {
		fmt.Fprintf(w, "  %d. %-40s %.4f  %s\n", i+1, utils.Truncate(displayTitle(r.Title, r.ID), 40), r.Score, r.ID)
	}
	writeSkipped(w, rec.Skipped)
	return nil
}

func writeSkipped(w io.Writer, skipped []recommend.SkippedCandidate) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSkipped %d stored embeddings:\n", len(skipped))
	for _, s := range skipped {
		fmt.Fprintf(w, "  %s: %s\n", s.ID, s.Reason)
	}
}

func displayTitle(title, id string) string {
	if title == "" {
		return id
	}
	return title
}

// WriteProgress writes the one-line outcome of a single generated item.
func WriteProgress(w io.Writer, res generator.ItemResult) {
	switch res.Status {
	case generator.StatusStored:
		fmt.Fprintf(w, "stored embedding for: %s\n", res.Title)
	case generator.StatusSkipped:
		fmt.Fprintf(w, "skipped %s: %s\n", res.Title, res.Reason)
	default:
		fmt.Fprintf(w, "failed to generate embedding for %s: %s\n", res.Title, res.Reason)
	}
}

// WriteReport writes the summary of a generation run.
func WriteReport(w io.Writer, report *generator.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "\nGenerated embeddings (%s): %d total, %d stored, %d failed, %d skipped in %s\n",
		report.Mode, report.Total, report.Succeeded, report.Failed, report.Skipped, report.Duration.Round(time.Millisecond))
	if len(report.Failures) > 0 {
		fmt.Fprintln(w, "Failures:")
		for _, f := range report.Failures {
			fmt.Fprintf(w, "  %s (%s): %s\n", displayTitle(f.Title, f.ID), f.ID, f.Reason)
		}
	}
	return nil
}

// WriteEmbedding prints the dimensionality and the first n values of a stored embedding.
// A non-positive n prints every value.
func WriteEmbedding(w io.Writer, title, id string, vec []float32, n int) {
	if n <= 0 || n > len(vec) {
		n = len(vec)
	}
	vals := make([]string, n)
	for i, v := range vec[:n] {
		vals[i] = fmt.Sprintf("%.6f", v)
	}
	more := ""
	if n < len(vec) {
		more = ", ..."
	}
	fmt.Fprintf(w, "embedding for: %s (%s)\n", displayTitle(title, id), id)
	fmt.Fprintf(w, "dimensions: %d\n", len(vec))
	fmt.Fprintf(w, "first %d values: [%s%s]\n", n, strings.Join(vals, ", "), more)
}
