// Package executor runs external re-encode tools against single files.
package executor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shrinkray/internal/errors"
	"shrinkray/internal/logging"
	"shrinkray/internal/strategy"
	"shrinkray/internal/util"
)

// interruptGrace is how long a tool gets to exit after SIGINT before
// the hard kill.
const interruptGrace = 10 * time.Second

// stderrLimit bounds how much tool stderr is kept for reporting.
const stderrLimit = 64 * 1024

// Toolbox resolves and caches binary paths for external tools.
type Toolbox struct {
	mu    sync.Mutex
	paths map[string]string
}

// NewToolbox creates an empty Toolbox.
func NewToolbox() *Toolbox {
	return &Toolbox{paths: make(map[string]string)}
}

// EnvOverride names the environment variable that overrides the
// binary path for a tool, e.g. SHRINKRAY_BIN_FFMPEG.
func EnvOverride(tool string) string {
	return "SHRINKRAY_BIN_" + strings.ToUpper(tool)
}

// Lookup resolves a tool name to a binary path, consulting the
// override variable before PATH and caching the result.
func (t *Toolbox) Lookup(tool string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if path, ok := t.paths[tool]; ok {
		return path, nil
	}

	if override := os.Getenv(EnvOverride(tool)); override != "" {
		info, err := os.Stat(override)
		if err != nil || info.IsDir() {
			return "", errors.NewToolMissingError(tool)
		}
		logging.Debug("using tool from environment", "tool", tool, "path", override)
		t.paths[tool] = override
		return override, nil
	}

	path, err := exec.LookPath(tool)
	if err != nil {
		return "", errors.NewToolMissingError(tool)
	}
	logging.Debug("found tool", "tool", tool, "path", path)
	t.paths[tool] = path
	return path, nil
}

// Result contains the outcome of one re-encode attempt.
type Result struct {
	Success    bool
	Error      error
	Stderr     string
	OutputSize int64
}

// Run executes the strategy against input, writing to output. Partial
// output and pass logs are removed on every failure path.
func Run(ctx context.Context, tools *Toolbox, strat strategy.Strategy, input, output string, timeout time.Duration) Result {
	bin, err := tools.Lookup(strat.Tool)
	if err != nil {
		return Result{Error: err}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if first := strat.FirstPassLine(input, output); first != nil {
		if res := runPass(ctx, bin, first, timeout); !res.Success {
			removePassLog(output)
			cleanup(output)
			return res
		}
	}

	res := runPass(ctx, bin, strat.CommandLine(input, output), timeout)
	if strat.FirstPass != nil {
		removePassLog(output)
	}
	if !res.Success {
		cleanup(output)
		return res
	}

	size, err := util.GetFileSize(output)
	if err != nil || size == 0 {
		cleanup(output)
		res.Success = false
		res.Error = errors.NewEmptyOutputError(strat.Tool, output)
		return res
	}

	res.OutputSize = size
	return res
}

func runPass(ctx context.Context, bin string, args []string, timeout time.Duration) Result {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	// SIGINT first so encoders can finalize; the kill follows after
	// the grace period.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = interruptGrace

	logging.Debug("running", "bin", bin, "args", strings.Join(args, " "))
	err := cmd.Run()

	out := strings.TrimSpace(stderr.String())
	if len(out) > stderrLimit {
		out = out[:stderrLimit]
	}

	if err != nil {
		tool := filepath.Base(bin)
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			return Result{Error: errors.NewTimeoutError(tool, timeout), Stderr: out}
		case ctx.Err() != nil:
			return Result{Error: errors.NewCancelledError(), Stderr: out}
		default:
			return Result{Error: errors.WrapExecError(tool, err, out), Stderr: out}
		}
	}

	return Result{Success: true, Stderr: out}
}

func cleanup(output string) {
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove output file", "path", output, "error", err)
	}
}

// ffmpeg appends "-0.log" to the -passlogfile prefix.
func removePassLog(output string) {
	log := output + ".pass-0.log"
	if err := os.Remove(log); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove pass log", "path", log, "error", err)
	}
}
