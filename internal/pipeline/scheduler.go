package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"shrinkray/internal/classify"
	"shrinkray/internal/commit"
	"shrinkray/internal/config"
	"shrinkray/internal/discovery"
	"shrinkray/internal/errors"
	"shrinkray/internal/executor"
	"shrinkray/internal/logging"
	"shrinkray/internal/probe"
	"shrinkray/internal/reporter"
	"shrinkray/internal/strategy"
	"shrinkray/internal/util"
)

// Run walks the configured roots and shrinks every eligible file through a
// bounded worker pool. Discovery advances only as fast as workers accept
// jobs, so memory stays flat on arbitrarily large trees. The returned error
// is non-nil only when the context was cancelled; per-file problems are
// folded into the stats instead.
func Run(ctx context.Context, cfg *config.Config, rep reporter.Reporter) (*RunStats, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	start := time.Now()

	rep.RunStarted(reporter.RunInfo{
		Hostname: util.GetSystemInfo().Hostname,
		Roots:    cfg.Roots,
		Workers:  cfg.WorkerCount(),
		DryRun:   cfg.DryRun,
	})

	tools := executor.NewToolbox()
	jobs := make(chan Job)
	results := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				rep.FileStarted(job.Candidate.Path)
				results <- process(ctx, cfg, tools, job)
			}
		}()
	}

	// A single collector owns the stats, so workers never share counters.
	stats := &RunStats{}
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for o := range results {
			stats.Add(o)
			rep.FileOutcome(toEvent(o))
		}
	}()

	opts := discovery.Options{
		Exclude:        cfg.Exclude,
		MaxDepth:       cfg.MaxDepth,
		FollowSymlinks: cfg.FollowSymlinks,
		SkipHidden:     cfg.SkipHidden,
	}
	walkRes, walkErr := discovery.Walk(ctx, cfg.Roots, opts, func(path string, info fs.FileInfo) error {
		res, err := classify.Detect(path)
		if err != nil {
			results <- Outcome{Path: path, Status: StatusFailed, Err: err, OriginalSize: info.Size()}
			return nil
		}

		cand := Candidate{Path: path, Kind: res.Kind, Container: res.Container, Size: info.Size()}
		strat, reason := strategy.Select(res, cand.Size, cfg)
		if reason != "" {
			results <- Outcome{Path: path, Kind: cand.Kind, Status: StatusSkipped, Reason: reason, OriginalSize: cand.Size}
			return nil
		}

		temp, err := util.TempSibling(path, strat.Container)
		if err != nil {
			wrapped := errors.NewIOError("could not pick a temporary name", err)
			results <- Outcome{Path: path, Kind: cand.Kind, Status: StatusFailed, Err: wrapped, OriginalSize: cand.Size}
			return nil
		}

		if cfg.DryRun {
			results <- Outcome{
				Path:         path,
				Kind:         cand.Kind,
				Status:       StatusSkipped,
				Reason:       ReasonDryRun,
				OriginalSize: cand.Size,
				Command:      strat.Render(path, temp),
			}
			return nil
		}

		if avail := util.GetAvailableSpace(filepath.Dir(path)); avail > 0 && avail < cand.Size {
			rep.Warning(fmt.Sprintf("low disk space next to %s: %s available", path, util.FormatBytes(avail)))
		}

		select {
		case jobs <- Job{Candidate: cand, Strategy: strat, TempPath: temp}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	close(jobs)
	wg.Wait()
	close(results)
	<-collectorDone

	if walkRes.Errors > 0 {
		rep.Warning(fmt.Sprintf("%d entries could not be read during discovery", walkRes.Errors))
	}

	cancelled := walkErr != nil || ctx.Err() != nil
	rep.RunComplete(reporter.RunSummary{
		Scanned:       stats.Scanned,
		Shrunk:        stats.Shrunk,
		Skipped:       stats.Skipped,
		Failed:        stats.Failed,
		OriginalBytes: stats.OriginalBytes,
		ShrunkBytes:   stats.ShrunkBytes,
		BytesSaved:    stats.BytesSaved(),
		Elapsed:       time.Since(start),
		Cancelled:     cancelled,
		Failures:      toFailureDetails(stats.Failures),
	})

	if walkErr != nil {
		return stats, walkErr
	}
	return stats, ctx.Err()
}

// process runs one job end to end on a worker. Every path through it
// produces exactly one outcome.
func process(ctx context.Context, cfg *config.Config, tools *executor.Toolbox, job Job) Outcome {
	cand := job.Candidate
	out := Outcome{Path: cand.Path, Kind: cand.Kind, OriginalSize: cand.Size}

	if cfg.SkipTagged {
		comment, err := probe.Comment(ctx, tools, cand.Path, cand.Kind)
		if err != nil {
			logging.Debug("could not read metadata comment", "path", cand.Path, "error", err)
		} else if strategy.IsTagged(comment) {
			out.Status = StatusSkipped
			out.Reason = ReasonAlreadyShrunk
			return out
		}
	}

	res := executor.Run(ctx, tools, job.Strategy, cand.Path, job.TempPath, cfg.JobTimeout)
	if !res.Success {
		out.Status = StatusFailed
		out.Err = res.Error
		return out
	}

	committed, err := commit.Finalize(cand.Path, job.TempPath, cand.Kind, job.Strategy.Container, cfg.MinReduction)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	if !committed.Committed {
		out.Status = StatusSkipped
		out.Reason = committed.Reason
		return out
	}

	out.Status = StatusShrunk
	out.NewSize = committed.NewSize
	out.FinalPath = committed.FinalPath
	return out
}

func toEvent(o Outcome) reporter.FileOutcome {
	ev := reporter.FileOutcome{
		Path:         o.Path,
		Kind:         o.Kind.String(),
		Status:       o.Status.String(),
		Reason:       o.Reason,
		OriginalSize: o.OriginalSize,
		NewSize:      o.NewSize,
		FinalPath:    o.FinalPath,
		Command:      o.Command,
	}
	if o.Status == StatusFailed {
		ev.Reason = o.FailReason()
	}
	return ev
}

func toFailureDetails(failures []Failure) []reporter.FailureDetail {
	if len(failures) == 0 {
		return nil
	}
	details := make([]reporter.FailureDetail, len(failures))
	for i, f := range failures {
		details[i] = reporter.FailureDetail{Path: f.Path, Reason: f.Reason}
	}
	return details
}
