package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter outputs one NDJSON event per pipeline update, suitable for
// log collectors and supervising processes.
type JSONReporter struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{writer: os.Stdout}
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) RunStarted(info RunInfo) {
	r.write(map[string]interface{}{
		"type":      "run_started",
		"hostname":  info.Hostname,
		"roots":     info.Roots,
		"workers":   info.Workers,
		"dry_run":   info.DryRun,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) FileStarted(path string) {
	r.write(map[string]interface{}{
		"type":      "file_started",
		"path":      path,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) FileOutcome(outcome FileOutcome) {
	event := map[string]interface{}{
		"type":          "file_outcome",
		"path":          outcome.Path,
		"kind":          outcome.Kind,
		"status":        outcome.Status,
		"original_size": outcome.OriginalSize,
		"timestamp":     r.timestamp(),
	}
	if outcome.Reason != "" {
		event["reason"] = outcome.Reason
	}
	if outcome.Status == "shrunk" {
		event["new_size"] = outcome.NewSize
		event["final_path"] = outcome.FinalPath
	}
	if outcome.Command != "" {
		event["command"] = outcome.Command
	}
	r.write(event)
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) RunComplete(summary RunSummary) {
	failures := make([]map[string]interface{}, len(summary.Failures))
	for i, f := range summary.Failures {
		failures[i] = map[string]interface{}{
			"path":   f.Path,
			"reason": f.Reason,
		}
	}

	r.write(map[string]interface{}{
		"type":             "run_complete",
		"scanned":          summary.Scanned,
		"shrunk":           summary.Shrunk,
		"skipped":          summary.Skipped,
		"failed":           summary.Failed,
		"original_bytes":   summary.OriginalBytes,
		"shrunk_bytes":     summary.ShrunkBytes,
		"bytes_saved":      summary.BytesSaved,
		"duration_seconds": int64(summary.Elapsed.Seconds()),
		"cancelled":        summary.Cancelled,
		"failures":         failures,
		"timestamp":        r.timestamp(),
	})
}
