// Package config provides configuration types and defaults for shrinkray.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"shrinkray/internal/util"
)

// Default constants
const (
	// DefaultMinFileSize is the size in bytes below which files are not worth shrinking.
	DefaultMinFileSize int64 = 1024

	// DefaultMinReduction is the fraction of the original size a re-encode must save.
	DefaultMinReduction float64 = 0.05

	// DefaultJobTimeout is how long a single re-encode may run before being killed.
	DefaultJobTimeout = 2 * time.Hour

	// DefaultVideoQuality is the CRF used for video re-encodes.
	DefaultVideoQuality uint8 = 35

	// DefaultImageQuality is the JPEG quality used for image re-encodes.
	DefaultImageQuality uint8 = 85

	// DefaultAudioBitrate is the Opus bitrate in kbit/s used for audio re-encodes.
	DefaultAudioBitrate uint = 96

	// MaxVideoQuality is the maximum valid CRF value.
	MaxVideoQuality uint8 = 63

	// MaxImageQuality is the maximum valid JPEG quality value.
	MaxImageQuality uint8 = 100
)

// Codec represents the video codec used for re-encodes.
type Codec string

const (
	CodecVP9 Codec = "vp9"
	CodecAV1 Codec = "av1"
)

// ParseCodec parses a string into a Codec.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "vp9":
		return CodecVP9, nil
	case "av1":
		return CodecAV1, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: vp9, av1", ErrInvalidCodec, s)
	}
}

// String returns the string representation of the codec.
func (c Codec) String() string {
	return string(c)
}

// Config holds all configuration for a shrink run.
type Config struct {
	// Discovery options
	Roots          []string
	Exclude        []string // Glob patterns matched against names and root-relative paths
	MaxDepth       int      // 0 means unlimited
	FollowSymlinks bool
	SkipHidden     bool

	// Strategy selection
	MinFileSize    int64
	VideoCodec     Codec
	VideoQuality   uint8
	VideoMaxHeight uint // 0 means keep the source resolution
	VideoTwoPass   bool
	ImageQuality   uint8
	AudioBitrate   uint

	// Commit options
	MinReduction float64
	SkipTagged   bool // Skip files already carrying our comment tag

	// Scheduling options
	Workers    int // 0 means one per CPU
	JobTimeout time.Duration
	DryRun     bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		SkipHidden:   true,
		MinFileSize:  DefaultMinFileSize,
		VideoCodec:   CodecVP9,
		VideoQuality: DefaultVideoQuality,
		ImageQuality: DefaultImageQuality,
		AudioBitrate: DefaultAudioBitrate,
		MinReduction: DefaultMinReduction,
		SkipTagged:   true,
		JobTimeout:   DefaultJobTimeout,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.VideoCodec != CodecVP9 && c.VideoCodec != CodecAV1 {
		return fmt.Errorf("%w: '%s', valid options: vp9, av1", ErrInvalidCodec, c.VideoCodec)
	}

	if c.VideoQuality > MaxVideoQuality {
		return fmt.Errorf("%w: video quality must be 0-%d, got %d", ErrInvalidQuality, MaxVideoQuality, c.VideoQuality)
	}

	if c.ImageQuality == 0 || c.ImageQuality > MaxImageQuality {
		return fmt.Errorf("%w: image quality must be 1-%d, got %d", ErrInvalidQuality, MaxImageQuality, c.ImageQuality)
	}

	if c.AudioBitrate == 0 {
		return fmt.Errorf("%w: audio bitrate must be positive", ErrInvalidBitrate)
	}

	if c.MinReduction < 0 || c.MinReduction >= 1 {
		return fmt.Errorf("%w: must be 0-0.99, got %g", ErrInvalidMinReduction, c.MinReduction)
	}

	if c.MinFileSize < 0 {
		return fmt.Errorf("%w: must be non-negative, got %d", ErrInvalidMinFileSize, c.MinFileSize)
	}

	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: must be non-negative, got %d", ErrInvalidDepth, c.MaxDepth)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: must be non-negative, got %d", ErrInvalidWorkers, c.Workers)
	}

	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidTimeout, c.JobTimeout)
	}

	for _, pattern := range c.Exclude {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("%w: '%s'", ErrInvalidExclude, pattern)
		}
	}

	return nil
}

// ValidateRoots checks that every root exists and can be written to.
// Replacing a file in place needs write access to its directory.
func (c *Config) ValidateRoots() error {
	if len(c.Roots) == 0 {
		return ErrNoRoots
	}

	for _, root := range c.Roots {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}

		dir := root
		if !info.IsDir() {
			dir = filepath.Dir(root)
		}
		if err := util.EnsureDirectoryWritable(dir); err != nil {
			return fmt.Errorf("%w: %s", ErrRootNotWritable, dir)
		}
	}

	return nil
}

// WorkerCount returns the effective worker pool size.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
