package verify

import (
	"time"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
)

// Status of a single check.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

func statusOf(checked, passed bool) Status {
	switch {
	case !checked:
		return StatusSkipped
	case passed:
		return StatusPassed
	default:
		return StatusFailed
	}
}

// PartCheck is the re-measured state of one part on disk.
type PartCheck struct {
	Index         int    `json:"index" yaml:"index" toml:"index"`
	Path          string `json:"path" yaml:"path" toml:"path"`
	Bytes         int64  `json:"bytes" yaml:"bytes" toml:"bytes"`
	Lines         int64  `json:"lines" yaml:"lines" toml:"lines"`
	BytesOK       bool   `json:"bytes_ok" yaml:"bytes_ok" toml:"bytes_ok"`
	LinesOK       bool   `json:"lines_ok" yaml:"lines_ok" toml:"lines_ok"`
	HeaderMatches *bool  `json:"header_matches,omitempty" yaml:"header_matches,omitempty" toml:"header_matches,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// Readable reports whether the part could be measured.
func (p PartCheck) Readable() bool {
	return p.Error == ""
}

// WithinBounds reports whether the part passed its bound check.
func (p PartCheck) WithinBounds() bool {
	return p.Readable() && p.BytesOK && p.LinesOK
}

// BoundsCheck is the aggregate of every per-part bound check.
type BoundsCheck struct {
	Passed bool `json:"passed" yaml:"passed" toml:"passed"`
	// Violations lists the paths of parts that exceed a bound or could not be read.
	Violations []string `json:"violations" yaml:"violations" toml:"violations"`
}

// HeaderCheck compares the first line of every part with the original's.
type HeaderCheck struct {
	Checked    bool     `json:"checked" yaml:"checked" toml:"checked"`
	Passed     bool     `json:"passed" yaml:"passed" toml:"passed"`
	Header     string   `json:"header" yaml:"header" toml:"header"`
	Mismatches []string `json:"mismatches" yaml:"mismatches" toml:"mismatches"`
}

// ReconcileCheck compares the original's line count with the line count of
// the logical recombination of all parts.
type ReconcileCheck struct {
	Checked         bool     `json:"checked" yaml:"checked" toml:"checked"`
	Passed          bool     `json:"passed" yaml:"passed" toml:"passed"`
	OriginalLines   int64    `json:"original_lines" yaml:"original_lines" toml:"original_lines"`
	RecombinedLines int64    `json:"recombined_lines" yaml:"recombined_lines" toml:"recombined_lines"`
	UnreadableParts []string `json:"unreadable_parts" yaml:"unreadable_parts" toml:"unreadable_parts"`
	// Set when the recombination was written to disk.
	RecombinedPath string `json:"recombined_path,omitempty" yaml:"recombined_path,omitempty" toml:"recombined_path,omitempty"`
	ContentMatch   *bool  `json:"content_match,omitempty" yaml:"content_match,omitempty" toml:"content_match,omitempty"`
}

// SanityResult is the outcome of one verification run.
type SanityResult struct {
	RunID          string            `json:"run_id" yaml:"run_id" toml:"run_id"`
	CreatedAt      time.Time         `json:"created_at" yaml:"created_at" toml:"created_at"`
	OriginalFile   string            `json:"original_file" yaml:"original_file" toml:"original_file"`
	PartsDir       string            `json:"parts_dir" yaml:"parts_dir" toml:"parts_dir"`
	Pattern        string            `json:"glob_pattern" yaml:"glob_pattern" toml:"glob_pattern"`
	Encoding       string            `json:"encoding" yaml:"encoding" toml:"encoding"`
	Header         bool              `json:"header" yaml:"header" toml:"header"`
	Policy         types.SplitPolicy `json:"policy" yaml:"policy" toml:"policy"`
	TotalParts     int               `json:"total_parts" yaml:"total_parts" toml:"total_parts"`
	MissingIndices []int             `json:"missing_indices" yaml:"missing_indices" toml:"missing_indices"`
	Parts          []PartCheck       `json:"parts" yaml:"parts" toml:"parts"`
	Bounds         BoundsCheck       `json:"bounds" yaml:"bounds" toml:"bounds"`
	Headers        HeaderCheck       `json:"headers" yaml:"headers" toml:"headers"`
	Reconcile      ReconcileCheck    `json:"reconcile" yaml:"reconcile" toml:"reconcile"`
	Passed         bool              `json:"passed" yaml:"passed" toml:"passed"`
}

// CheckSummary is the name, verdict and supporting counters of one check,
// the shape report renderers consume.
type CheckSummary struct {
	Name     string           `json:"name" yaml:"name" toml:"name"`
	Status   Status           `json:"status" yaml:"status" toml:"status"`
	Counters map[string]int64 `json:"counters" yaml:"counters" toml:"counters"`
}

// Checks returns one summary per check in a stable order.
func (r *SanityResult) Checks() []CheckSummary {
	reconcile := map[string]int64{
		"original_lines":   r.Reconcile.OriginalLines,
		"recombined_lines": r.Reconcile.RecombinedLines,
		"unreadable_parts": int64(len(r.Reconcile.UnreadableParts)),
	}
	if r.Reconcile.ContentMatch != nil {
		reconcile["content_match"] = boolCounter(*r.Reconcile.ContentMatch)
	}

	return []CheckSummary{
		{
			Name:   "bounds",
			Status: statusOf(true, r.Bounds.Passed),
			Counters: map[string]int64{
				"parts":      int64(r.TotalParts),
				"violations": int64(len(r.Bounds.Violations)),
				"max_bytes":  r.Policy.MaxBytes,
				"max_lines":  r.Policy.MaxLines,
			},
		},
		{
			Name:   "headers",
			Status: statusOf(r.Headers.Checked, r.Headers.Passed),
			Counters: map[string]int64{
				"parts":      int64(r.TotalParts),
				"mismatches": int64(len(r.Headers.Mismatches)),
			},
		},
		{
			Name:     "reconcile",
			Status:   statusOf(r.Reconcile.Checked, r.Reconcile.Passed),
			Counters: reconcile,
		},
	}
}

func boolCounter(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
