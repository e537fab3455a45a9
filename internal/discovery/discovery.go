// Package discovery walks directory trees and yields candidate files.
package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"shrinkray/internal/logging"
)

// Options control how roots are traversed.
type Options struct {
	Exclude        []string // Glob patterns matched against entry names and root-relative paths
	MaxDepth       int      // Directory levels below each root; 0 means unlimited
	FollowSymlinks bool
	SkipHidden     bool
}

// WalkFunc receives each discovered regular file. Returning an error
// stops the walk.
type WalkFunc func(path string, info fs.FileInfo) error

// Result summarizes a finished walk.
type Result struct {
	Yielded int
	Errors  int
}

// Walk visits every regular file under the given roots exactly once,
// in root order. Unreadable entries are logged and counted, never
// fatal; only context cancellation or a callback error stops the walk.
func Walk(ctx context.Context, roots []string, opts Options, fn WalkFunc) (Result, error) {
	var res Result
	seen := make(map[string]bool)

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		abs, err := filepath.Abs(root)
		if err != nil {
			logging.Warn("skipping unresolvable root", "root", root, "error", err)
			res.Errors++
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		if err := walkRoot(ctx, abs, opts, fn, &res, seen); err != nil {
			return res, err
		}
	}

	return res, nil
}

func walkRoot(ctx context.Context, root string, opts Options, fn WalkFunc, res *Result, seen map[string]bool) error {
	info, err := os.Lstat(root)
	if err != nil {
		logging.Warn("skipping unreadable root", "root", root, "error", err)
		res.Errors++
		return nil
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		if !opts.FollowSymlinks {
			logging.Debug("skipping symlink root", "root", root)
			return nil
		}
		info, err = os.Stat(root)
		if err != nil {
			logging.Warn("skipping dangling symlink root", "root", root, "error", err)
			res.Errors++
			return nil
		}
	}

	// A root naming a file directly is always yielded, even when
	// hidden or matching an exclude pattern.
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			logging.Debug("skipping special file root", "root", root)
			return nil
		}
		return yield(root, info, fn, res, seen)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			logging.Warn("skipping unreadable entry", "path", path, "error", walkErr)
			res.Errors++
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}

		if opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if excluded(opts.Exclude, d.Name(), rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if opts.MaxDepth > 0 && depthOf(rel) >= opts.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil {
				logging.Warn("skipping dangling symlink", "path", path, "error", err)
				res.Errors++
				return nil
			}
			// Linked directories are never descended, so link cycles
			// cannot loop the walk.
			if !target.Mode().IsRegular() {
				return nil
			}
			return yield(path, target, fn, res, seen)
		}

		// Sockets, pipes and devices are not candidates
		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			logging.Warn("skipping unreadable entry", "path", path, "error", err)
			res.Errors++
			return nil
		}
		return yield(path, fi, fn, res, seen)
	})
}

// yield hands one file to the callback, deduplicating across
// overlapping roots and followed links.
func yield(path string, info fs.FileInfo, fn WalkFunc, res *Result, seen map[string]bool) error {
	if abs, err := filepath.Abs(path); err == nil {
		if seen[abs] {
			return nil
		}
		seen[abs] = true
	}

	res.Yielded++
	return fn(path, info)
}

func excluded(patterns []string, name, rel string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// depthOf counts directory levels below the root, starting at 1 for
// direct children.
func depthOf(rel string) int {
	return strings.Count(rel, string(filepath.Separator)) + 1
}
