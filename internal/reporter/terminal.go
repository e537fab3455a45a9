package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"shrinkray/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu       sync.Mutex
	progress *progressbar.ProgressBar
	files    int
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	faint    *color.Color
	bold     *color.Color
}

// NewTerminalReporter creates a new terminal reporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		faint:  color.New(color.Faint),
		bold:   color.New(color.Bold),
	}
}

// printLabel prints a bold label with fixed width padding followed by a value.
// Width is applied to the plain text before styling to ensure proper alignment.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
}

func (r *TerminalReporter) RunStarted(info RunInfo) {
	fmt.Println()
	_, _ = r.cyan.Println("SCAN")
	for _, root := range info.Roots {
		fmt.Printf("  %s\n", root)
	}
	r.printLabel(9, "Workers:", fmt.Sprint(info.Workers))
	if info.DryRun {
		r.printLabel(9, "Mode:", r.yellow.Sprint("dry run, nothing is written"))
	}
	fmt.Println()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = 0
	r.progress = progressbar.NewOptions64(
		-1,
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) FileStarted(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		r.progress.Describe(util.GetFilename(path))
	}
}

func (r *TerminalReporter) FileOutcome(outcome FileOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Clear()
	}

	switch outcome.Status {
	case "shrunk":
		reduction := util.CalculateSizeReduction(outcome.OriginalSize, outcome.NewSize)
		fmt.Printf("  %s %s  %s -> %s (%.1f%%)\n",
			r.green.Sprint("Shrunk "), outcome.Path,
			util.FormatBytes(outcome.OriginalSize), util.FormatBytes(outcome.NewSize), reduction)
	case "failed":
		fmt.Printf("  %s %s  %s\n", r.red.Sprint("Failed "), outcome.Path, outcome.Reason)
	default:
		if outcome.Command != "" {
			fmt.Printf("  %s %s\n          %s\n",
				r.bold.Sprint("Dry run"), outcome.Path, r.faint.Sprint(outcome.Command))
		} else {
			fmt.Printf("  %s %s  %s\n",
				r.faint.Sprint("Skipped"), outcome.Path, r.faint.Sprintf("(%s)", outcome.Reason))
		}
	}

	if r.progress != nil {
		r.files++
		r.progress.Describe(fmt.Sprintf("%d files", r.files))
		_ = r.progress.Add(1)
	}
}

func (r *TerminalReporter) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Clear()
	}
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) RunComplete(summary RunSummary) {
	r.finishProgress()

	fmt.Println()
	_, _ = r.cyan.Println("SUMMARY")
	r.printLabel(9, "Scanned:", fmt.Sprint(summary.Scanned))
	r.printLabel(9, "Shrunk:", r.green.Sprint(summary.Shrunk))
	r.printLabel(9, "Skipped:", fmt.Sprint(summary.Skipped))
	if summary.Failed > 0 {
		r.printLabel(9, "Failed:", r.red.Sprint(summary.Failed))
	} else {
		r.printLabel(9, "Failed:", "0")
	}
	r.printLabel(9, "Saved:", r.bold.Sprint(util.FormatBytes(summary.BytesSaved)))
	r.printLabel(9, "Time:", util.FormatDuration(summary.Elapsed.Seconds()))
	if summary.Cancelled {
		fmt.Printf("  %s\n", r.yellow.Sprint("Run was cancelled before finishing"))
	}

	if len(summary.Failures) > 0 {
		fmt.Println()
		_, _ = r.cyan.Println("FAILURES")
		for _, f := range summary.Failures {
			fmt.Printf("  %s %s: %s\n", r.red.Sprint("✗"), f.Path, f.Reason)
		}
	}
}
