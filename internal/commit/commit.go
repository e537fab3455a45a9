// Package commit verifies encoder output and swaps it into place of the
// original file. It is the only code in shrinkray that replaces originals,
// and it does so exclusively through atomic renames.
package commit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shrinkray/internal/classify"
	"shrinkray/internal/errors"
	"shrinkray/internal/logging"
	"shrinkray/internal/util"
)

// ReasonNotSmallerEnough marks outputs rejected by the size check.
const ReasonNotSmallerEnough = "not-smaller-enough"

// Result describes what Finalize did with an encoder output.
type Result struct {
	// Committed reports whether the original was replaced.
	Committed bool

	// Reason is set when the output was discarded without an error.
	Reason string

	// FinalPath is where the committed file ended up. It differs from the
	// original path when the strategy changed the container.
	FinalPath string

	// NewSize is the committed file's size in bytes.
	NewSize int64
}

// Finalize checks an encoder output against its original and either commits
// it or discards it. The output must be smaller than the original by at
// least minReduction of its size and must re-classify as the wanted kind.
// The original is untouched on every non-commit path, and a commit that
// changes the file extension refuses to overwrite an unrelated file already
// holding the destination name.
func Finalize(origPath, tempPath string, want classify.Kind, container string, minReduction float64) (Result, error) {
	origInfo, err := os.Stat(origPath)
	if err != nil {
		discard(tempPath)
		return Result{}, errors.NewIOError("original vanished before commit", err)
	}
	tempInfo, err := os.Stat(tempPath)
	if err != nil {
		return Result{}, errors.NewIOError("encoder output vanished before commit", err)
	}

	origSize := origInfo.Size()
	newSize := tempInfo.Size()
	if !smallEnough(origSize, newSize, minReduction) {
		discard(tempPath)
		return Result{Reason: ReasonNotSmallerEnough}, nil
	}

	probe, err := classify.Detect(tempPath)
	if err != nil {
		discard(tempPath)
		return Result{}, errors.NewCorruptOutputError(tempPath, "unreadable after encoding")
	}
	if probe.Kind != want {
		discard(tempPath)
		detail := fmt.Sprintf("classified as %s, expected %s", probe.Kind, want)
		return Result{}, errors.NewCorruptOutputError(tempPath, detail)
	}

	// Metadata is copied onto the temp file before the swap so the rename
	// carries it in one step.
	if err := os.Chmod(tempPath, origInfo.Mode().Perm()); err != nil {
		logging.Warn("could not copy permissions", "path", tempPath, "error", err)
	}
	mtime := origInfo.ModTime()
	if err := os.Chtimes(tempPath, mtime, mtime); err != nil {
		logging.Warn("could not preserve modification time", "path", tempPath, "error", err)
	}

	finalPath := destination(origPath, container)
	if finalPath == origPath {
		if err := os.Rename(tempPath, origPath); err != nil {
			discard(tempPath)
			return Result{}, errors.NewCommitError("could not replace original", err)
		}
		return Result{Committed: true, FinalPath: origPath, NewSize: newSize}, nil
	}

	// The container changed, so the commit moves the file to a new name.
	// The original is parked under a temporary name until the output is in
	// place, then deleted; a failed second rename rolls the park back.
	if _, err := os.Lstat(finalPath); err == nil {
		discard(tempPath)
		msg := fmt.Sprintf("destination already exists: %s", finalPath)
		return Result{}, errors.NewCommitError(msg, nil)
	}

	backup, err := util.TempSibling(origPath, extensionOf(origPath))
	if err != nil {
		discard(tempPath)
		return Result{}, errors.NewCommitError("could not pick a backup name", err)
	}
	if err := os.Rename(origPath, backup); err != nil {
		discard(tempPath)
		return Result{}, errors.NewCommitError("could not set aside original", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		discard(tempPath)
		if restoreErr := os.Rename(backup, origPath); restoreErr != nil {
			logging.Error("could not restore original from backup",
				"original", origPath, "backup", backup, "error", restoreErr)
			msg := fmt.Sprintf("rename failed and the original is stranded at %s", backup)
			return Result{}, errors.NewCommitError(msg, err)
		}
		return Result{}, errors.NewCommitError("could not move output into place", err)
	}
	if err := os.Remove(backup); err != nil {
		logging.Warn("could not remove replaced original", "path", backup, "error", err)
	}

	return Result{Committed: true, FinalPath: finalPath, NewSize: newSize}, nil
}

// smallEnough reports whether newSize undercuts origSize by at least the
// given fraction of the original.
func smallEnough(origSize, newSize int64, minReduction float64) bool {
	if newSize >= origSize {
		return false
	}
	saved := float64(origSize - newSize)
	return saved >= float64(origSize)*minReduction
}

// destination swaps the path's extension for the strategy's container.
func destination(path, container string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return stem + "." + container
}

func extensionOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

func discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove output file", "path", path, "error", err)
	}
}
