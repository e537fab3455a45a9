// Package shrinkray provides a Go library for shrinking media libraries
// in place.
//
// Shrinkray walks directory trees for images, videos and audio, re-encodes
// each file with an external tool, and replaces the original only when the
// result is verified smaller and still decodes as the same kind of media.
// Originals are swapped out by atomic rename, never rewritten in place.
//
// Basic usage:
//
//	shrinker, err := shrinkray.New(
//	    shrinkray.WithWorkers(4),
//	    shrinkray.WithVideoCodec(shrinkray.CodecAV1),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := shrinker.Run(ctx, []string{"/media/photos"}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("saved %s across %d files\n",
//	    shrinkray.FormatBytes(stats.BytesSaved()), stats.Shrunk)
package shrinkray

import (
	"context"
	"time"

	"shrinkray/internal/config"
	"shrinkray/internal/pipeline"
	"shrinkray/internal/reporter"
	"shrinkray/internal/strategy"
	"shrinkray/internal/util"
)

// Version of the library. Shrunk files carry it in their metadata comment.
const Version = strategy.Version

// Codec selects the video encoder.
type Codec = config.Codec

const (
	CodecVP9 = config.CodecVP9
	CodecAV1 = config.CodecAV1
)

// ParseCodec converts a codec string to a Codec value.
// Valid values are "vp9" and "av1" (case-insensitive).
func ParseCodec(s string) (Codec, error) {
	return config.ParseCodec(s)
}

// RunStats aggregates the results of one run.
type RunStats = pipeline.RunStats

// Failure names one failed file and why it failed.
type Failure = pipeline.Failure

// Reporter receives progress events during a run.
type Reporter = reporter.Reporter

// NewTerminalReporter returns a reporter that prints human-friendly text.
func NewTerminalReporter() Reporter {
	return reporter.NewTerminalReporter()
}

// NewJSONReporter returns a reporter that emits NDJSON events on stdout.
func NewJSONReporter() Reporter {
	return reporter.NewJSONReporter()
}

// NewCompositeReporter fans events out to several reporters.
func NewCompositeReporter(reps ...Reporter) Reporter {
	return reporter.NewCompositeReporter(reps...)
}

// FormatBytes formats a byte count with binary units.
func FormatBytes(n int64) string {
	return util.FormatBytes(n)
}

// Shrinker is the main entry point for shrinking media trees.
type Shrinker struct {
	config *config.Config
}

// Option configures the shrinker.
type Option func(*config.Config)

// New creates a new Shrinker with the given options.
func New(opts ...Option) (*Shrinker, error) {
	cfg := config.NewConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Shrinker{config: cfg}, nil
}

// WithWorkers sets the number of concurrent encode jobs.
// Zero means one per CPU.
func WithWorkers(n int) Option {
	return func(c *config.Config) {
		c.Workers = n
	}
}

// WithJobTimeout bounds how long a single encode may run before it is
// killed and counted as failed.
func WithJobTimeout(d time.Duration) Option {
	return func(c *config.Config) {
		c.JobTimeout = d
	}
}

// WithDryRun reports what would be done without writing anything.
func WithDryRun() Option {
	return func(c *config.Config) {
		c.DryRun = true
	}
}

// WithExclude skips files and directories whose name or root-relative
// path matches any of the glob patterns.
func WithExclude(patterns ...string) Option {
	return func(c *config.Config) {
		c.Exclude = append(c.Exclude, patterns...)
	}
}

// WithMaxDepth limits how many directory levels below each root are
// walked. Zero means unlimited.
func WithMaxDepth(n int) Option {
	return func(c *config.Config) {
		c.MaxDepth = n
	}
}

// WithFollowSymlinks follows symbolic links to files during discovery.
// Links are skipped by default.
func WithFollowSymlinks() Option {
	return func(c *config.Config) {
		c.FollowSymlinks = true
	}
}

// WithIncludeHidden walks hidden files and directories, which are skipped
// by default.
func WithIncludeHidden() Option {
	return func(c *config.Config) {
		c.SkipHidden = false
	}
}

// WithMinFileSize sets the size in bytes below which files are never
// re-encoded.
func WithMinFileSize(bytes int64) Option {
	return func(c *config.Config) {
		c.MinFileSize = bytes
	}
}

// WithMinReduction sets the fraction of its original size a file must
// lose for the result to be kept, between 0 and 0.99.
func WithMinReduction(ratio float64) Option {
	return func(c *config.Config) {
		c.MinReduction = ratio
	}
}

// WithVideoCodec selects the target video codec.
func WithVideoCodec(codec Codec) Option {
	return func(c *config.Config) {
		c.VideoCodec = codec
	}
}

// WithVideoQuality sets the CRF for video encodes, 0-63. Higher is smaller.
func WithVideoQuality(crf uint8) Option {
	return func(c *config.Config) {
		c.VideoQuality = crf
	}
}

// WithVideoMaxHeight downscales videos taller than the given pixel height.
func WithVideoMaxHeight(px uint) Option {
	return func(c *config.Config) {
		c.VideoMaxHeight = px
	}
}

// WithVideoTwoPass enables two-pass vp9 encoding for better rate control.
func WithVideoTwoPass() Option {
	return func(c *config.Config) {
		c.VideoTwoPass = true
	}
}

// WithImageQuality sets the JPEG quality for image encodes, 1-100.
func WithImageQuality(quality uint8) Option {
	return func(c *config.Config) {
		c.ImageQuality = quality
	}
}

// WithAudioBitrate sets the opus bitrate for audio encodes in kbit/s.
func WithAudioBitrate(kbps uint) Option {
	return func(c *config.Config) {
		c.AudioBitrate = kbps
	}
}

// WithoutTagCheck re-encodes files even when their metadata comment says
// a previous run already shrunk them.
func WithoutTagCheck() Option {
	return func(c *config.Config) {
		c.SkipTagged = false
	}
}

// Run walks the given roots and shrinks every eligible file, reporting
// progress to rep. A nil rep discards all updates. The returned stats are
// valid even when the run was cancelled part way through; the error is
// non-nil only for invalid roots or cancellation.
func (s *Shrinker) Run(ctx context.Context, roots []string, rep Reporter) (*RunStats, error) {
	cfg := *s.config
	cfg.Roots = roots

	if err := cfg.ValidateRoots(); err != nil {
		return nil, err
	}

	return pipeline.Run(ctx, &cfg, rep)
}
