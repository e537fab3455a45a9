// Package pipeline coordinates discovery, classification, strategy
// selection, encoding and commit across a bounded worker pool.
package pipeline

import (
	"shrinkray/internal/classify"
	"shrinkray/internal/strategy"
)

// Candidate is a discovered file together with its classification.
type Candidate struct {
	Path      string
	Kind      classify.Kind
	Container string
	Size      int64
}

// Job pairs one candidate with one strategy and a private output path.
// A job is owned by a single worker from dispatch to outcome.
type Job struct {
	Candidate Candidate
	Strategy  strategy.Strategy
	TempPath  string
}

// Status is the terminal state of one scanned file.
type Status int

const (
	StatusShrunk Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusShrunk:
		return "shrunk"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Skip reasons produced by the pipeline itself. Selection and commit
// contribute their own reason strings.
const (
	ReasonAlreadyShrunk = "already-shrunk"
	ReasonDryRun        = "dry-run"
)

// Outcome is emitted exactly once for every scanned file.
type Outcome struct {
	Path         string
	Kind         classify.Kind
	Status       Status
	Reason       string
	Err          error
	OriginalSize int64
	NewSize      int64
	FinalPath    string
	Command      string
}

// FailReason returns the human-readable cause of a failed outcome.
func (o Outcome) FailReason() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Reason
}
