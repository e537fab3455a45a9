package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidCodec indicates an unknown video codec name was provided.
	ErrInvalidCodec = errors.New("invalid codec")

	// ErrInvalidQuality indicates a quality value outside its valid range.
	ErrInvalidQuality = errors.New("quality value out of range")

	// ErrInvalidBitrate indicates an audio bitrate of zero.
	ErrInvalidBitrate = errors.New("audio bitrate out of range")

	// ErrInvalidMinReduction indicates a minimum reduction outside [0, 1).
	ErrInvalidMinReduction = errors.New("minimum reduction out of range")

	// ErrInvalidMinFileSize indicates a negative minimum file size.
	ErrInvalidMinFileSize = errors.New("minimum file size out of range")

	// ErrInvalidDepth indicates a negative depth limit.
	ErrInvalidDepth = errors.New("depth limit out of range")

	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("worker count out of range")

	// ErrInvalidTimeout indicates a non-positive job timeout.
	ErrInvalidTimeout = errors.New("job timeout out of range")

	// ErrInvalidExclude indicates a malformed exclude glob pattern.
	ErrInvalidExclude = errors.New("invalid exclude pattern")

	// ErrNoRoots indicates a run was started without any paths.
	ErrNoRoots = errors.New("no paths given")

	// ErrRootNotFound indicates a root path that does not exist.
	ErrRootNotFound = errors.New("path does not exist")

	// ErrRootNotWritable indicates a root directory that cannot be written to.
	ErrRootNotWritable = errors.New("directory not writable")
)
