package pipeline

// Failure names one failed file and why it failed.
type Failure struct {
	Path   string
	Reason string
}

// RunStats aggregates outcomes across one run. Only the collector
// goroutine writes it; callers read it after Run returns.
type RunStats struct {
	Scanned int
	Shrunk  int
	Skipped int
	Failed  int

	// OriginalBytes and ShrunkBytes cover shrunk files only.
	OriginalBytes int64
	ShrunkBytes   int64

	Failures []Failure
}

// Add folds one outcome into the totals.
func (s *RunStats) Add(o Outcome) {
	s.Scanned++
	switch o.Status {
	case StatusShrunk:
		s.Shrunk++
		s.OriginalBytes += o.OriginalSize
		s.ShrunkBytes += o.NewSize
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Path: o.Path, Reason: o.FailReason()})
	}
}

// BytesSaved returns the total size reduction across shrunk files.
func (s *RunStats) BytesSaved() int64 {
	return s.OriginalBytes - s.ShrunkBytes
}
