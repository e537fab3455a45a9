// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// RunInfo describes a run before any file has been processed.
type RunInfo struct {
	Hostname string
	Roots    []string
	Workers  int
	DryRun   bool
}

// FileOutcome reports one file leaving the pipeline.
type FileOutcome struct {
	Path         string
	Kind         string
	Status       string
	Reason       string
	OriginalSize int64
	NewSize      int64
	FinalPath    string
	Command      string
}

// FailureDetail names one failed file and why it failed.
type FailureDetail struct {
	Path   string
	Reason string
}

// RunSummary contains run completion totals.
type RunSummary struct {
	Scanned       int
	Shrunk        int
	Skipped       int
	Failed        int
	OriginalBytes int64
	ShrunkBytes   int64
	BytesSaved    int64
	Elapsed       time.Duration
	Cancelled     bool
	Failures      []FailureDetail
}
