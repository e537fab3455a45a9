package reporter

// Reporter defines the interface for progress reporting. Methods may
// be called from multiple goroutines; implementations synchronize
// internally.
type Reporter interface {
	RunStarted(info RunInfo)
	FileStarted(path string)
	FileOutcome(outcome FileOutcome)
	Warning(message string)
	RunComplete(summary RunSummary)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) RunStarted(RunInfo)      {}
func (NullReporter) FileStarted(string)      {}
func (NullReporter) FileOutcome(FileOutcome) {}
func (NullReporter) Warning(string)          {}
func (NullReporter) RunComplete(RunSummary)  {}
