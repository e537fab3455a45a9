// Package main provides the CLI entry point for shrinkray.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shrinkray/internal/config"
	"shrinkray/internal/logging"
	"shrinkray/internal/pipeline"
	"shrinkray/internal/reporter"
	"shrinkray/internal/strategy"
)

// cliArgs holds the parsed command line flags.
type cliArgs struct {
	exclude        []string
	maxDepth       int
	followSymlinks bool
	hidden         bool
	minSize        int64
	minReduction   float64
	videoCodec     string
	videoQuality   uint8
	videoMaxHeight uint
	twoPass        bool
	imageQuality   uint8
	audioBitrate   uint
	workers        int
	timeout        time.Duration
	dryRun         bool
	noTagCheck     bool
	jsonOutput     bool
	jsonLog        string
	logDir         string
	verbose        bool
}

var (
	args     cliArgs
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:     "shrinkray [flags] PATH...",
	Short:   "Shrink media files in place",
	Version: strategy.Version,
	Long: `Shrinkray walks directory trees for images, videos and audio,
re-encodes each file with tighter compression, and replaces the
original only when the result is verified smaller and still valid.

Originals are never rewritten in place: every replacement goes
through a temporary file and an atomic rename, so an interrupted
run leaves all files intact.

External tools are required: ffmpeg and ffprobe for video and
audio, GraphicsMagick (gm) for images. Set SHRINKRAY_BIN_FFMPEG,
SHRINKRAY_BIN_FFPROBE or SHRINKRAY_BIN_GM to override lookup.`,
	Example: `  shrinkray ~/Pictures
  shrinkray -n ~/Videos
  shrinkray --video-codec av1 -j 2 /mnt/media
  shrinkray -e '*.raw' -e cache ~/Photos`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()

	f.StringArrayVarP(&args.exclude, "exclude", "e", nil,
		"glob pattern of names or relative paths to skip, repeatable")
	f.IntVar(&args.maxDepth, "max-depth", 0,
		"directory levels to descend below each path, 0 for unlimited")
	f.BoolVar(&args.followSymlinks, "follow-symlinks", false,
		"follow symbolic links to files")
	f.BoolVar(&args.hidden, "hidden", false,
		"include hidden files and directories")

	f.Int64Var(&args.minSize, "min-size", config.DefaultMinFileSize,
		"skip files smaller than this many bytes")
	f.Float64Var(&args.minReduction, "min-reduction", config.DefaultMinReduction,
		"fraction of its size a file must lose for the result to be kept")

	f.StringVar(&args.videoCodec, "video-codec", string(config.CodecVP9),
		"target video codec, vp9 or av1")
	f.Uint8Var(&args.videoQuality, "video-quality", config.DefaultVideoQuality,
		"video CRF, 0-63, higher is smaller")
	f.UintVar(&args.videoMaxHeight, "video-max-height", 0,
		"downscale videos taller than this many pixels, 0 to keep")
	f.BoolVar(&args.twoPass, "two-pass", false,
		"two-pass vp9 encoding for better rate control")
	f.Uint8Var(&args.imageQuality, "image-quality", config.DefaultImageQuality,
		"JPEG quality, 1-100")
	f.UintVar(&args.audioBitrate, "audio-bitrate", config.DefaultAudioBitrate,
		"opus bitrate for audio in kbit/s")

	f.IntVarP(&args.workers, "workers", "j", 0,
		"concurrent encode jobs, 0 for one per CPU")
	f.DurationVar(&args.timeout, "timeout", config.DefaultJobTimeout,
		"kill a single encode after this long")
	f.BoolVarP(&args.dryRun, "dry-run", "n", false,
		"report what would be done without writing anything")
	f.BoolVar(&args.noTagCheck, "no-tag-check", false,
		"re-encode files a previous run already shrunk")

	f.BoolVar(&args.jsonOutput, "json", false,
		"emit NDJSON events on stdout instead of text")
	f.StringVar(&args.jsonLog, "json-log", "",
		"also write NDJSON events to this file")
	f.StringVar(&args.logDir, "log-dir", "",
		"write a debug log file under this directory")
	f.BoolVarP(&args.verbose, "verbose", "v", false,
		"log debug detail to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func run(cmd *cobra.Command, roots []string) error {
	codec, err := config.ParseCodec(args.videoCodec)
	if err != nil {
		return err
	}

	level := logging.LevelInfo
	if args.verbose {
		level = logging.LevelDebug
	}
	sinks := []io.Writer{os.Stderr}
	logPath := ""
	if args.logDir != "" {
		file, path, err := logging.FileSink(args.logDir)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		sinks = append(sinks, file)
		logPath = path
	}
	logging.Init(level, io.MultiWriter(sinks...))
	if logPath != "" {
		logging.Debug("writing debug log", "path", logPath)
	}

	cfg := config.NewConfig()
	cfg.Roots = roots
	cfg.Exclude = args.exclude
	cfg.MaxDepth = args.maxDepth
	cfg.FollowSymlinks = args.followSymlinks
	cfg.SkipHidden = !args.hidden
	cfg.MinFileSize = args.minSize
	cfg.MinReduction = args.minReduction
	cfg.VideoCodec = codec
	cfg.VideoQuality = args.videoQuality
	cfg.VideoMaxHeight = args.videoMaxHeight
	cfg.VideoTwoPass = args.twoPass
	cfg.ImageQuality = args.imageQuality
	cfg.AudioBitrate = args.audioBitrate
	cfg.SkipTagged = !args.noTagCheck
	cfg.Workers = args.workers
	cfg.JobTimeout = args.timeout
	cfg.DryRun = args.dryRun

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateRoots(); err != nil {
		return err
	}

	var rep reporter.Reporter = reporter.NewTerminalReporter()
	if args.jsonOutput {
		rep = reporter.NewJSONReporter()
	}
	if args.jsonLog != "" {
		file, err := os.Create(args.jsonLog)
		if err != nil {
			return fmt.Errorf("failed to create event log %s: %w", args.jsonLog, err)
		}
		defer func() { _ = file.Close() }()
		rep = reporter.NewCompositeReporter(rep, reporter.NewJSONReporterWithWriter(file))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	stats, err := pipeline.Run(ctx, cfg, rep)
	switch {
	case err != nil:
		exitCode = 130
	case stats.Failed > 0:
		exitCode = 2
	}
	return nil
}
