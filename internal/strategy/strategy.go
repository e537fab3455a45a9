// Package strategy maps classified files to re-encode commands.
package strategy

import (
	"fmt"
	"strings"

	"shrinkray/internal/classify"
	"shrinkray/internal/config"
)

// Version is stamped into the comment tag of every re-encoded file.
const Version = "0.3.0"

// TagPrefix marks outputs produced by this tool. Tag matching is
// case-insensitive.
const TagPrefix = "shrinkray/"

// Tokens replaced with real paths when a command is rendered.
const (
	InputToken  = "{input}"
	OutputToken = "{output}"
)

// Tool names as invoked on the system.
const (
	ToolFFmpeg = "ffmpeg"
	ToolGM     = "gm"
)

// Skip reasons produced during selection.
const (
	ReasonUnsupported  = "unsupported"
	ReasonBelowMinSize = "below-min-size"
)

// CommentTag returns the metadata comment written into every output.
func CommentTag() string {
	return TagPrefix + Version
}

// IsTagged reports whether a metadata comment was written by a
// previous run.
func IsTagged(comment string) bool {
	return len(comment) >= len(TagPrefix) && strings.EqualFold(comment[:len(TagPrefix)], TagPrefix)
}

// Strategy is a concrete plan for re-encoding one file.
type Strategy struct {
	Tool      string   // Executable name, e.g. "ffmpeg"
	Args      []string // Arguments holding {input} and {output} tokens
	FirstPass []string // Optional analysis pass run before Args
	Container string   // Output container extension, e.g. "webm"
	Kind      classify.Kind
}

// Select decides how to shrink a classified file. A non-empty reason
// means the file should be skipped instead.
func Select(res classify.Result, size int64, cfg *config.Config) (Strategy, string) {
	if res.Kind == classify.KindUnknown {
		return Strategy{}, ReasonUnsupported
	}

	// TODO: single-frame GIFs could re-encode as JPEG; needs frame counting
	if res.MIME == "image/gif" {
		return Strategy{}, ReasonUnsupported
	}

	if size < cfg.MinFileSize {
		return Strategy{}, ReasonBelowMinSize
	}

	switch res.Kind {
	case classify.KindVideo:
		return videoStrategy(cfg), ""
	case classify.KindImage:
		return imageStrategy(cfg), ""
	default:
		return audioStrategy(cfg), ""
	}
}

func videoStrategy(cfg *config.Config) Strategy {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", InputToken}

	switch cfg.VideoCodec {
	case config.CodecAV1:
		args = append(args, "-c:v", "libsvtav1", "-crf", fmt.Sprint(cfg.VideoQuality), "-preset", "6")
	default:
		args = append(args, "-c:v", "vp9", "-crf", fmt.Sprint(cfg.VideoQuality), "-b:v", "0", "-row-mt", "1")
	}

	if cfg.VideoMaxHeight > 0 {
		// The quotes belong to ffmpeg's filter parser, which would
		// otherwise split the expression at the comma.
		args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(ih,%d)'", cfg.VideoMaxHeight))
	}

	// Two-pass analysis only makes sense for vp9; SVT-AV1 rate
	// control is single-pass.
	var firstPass []string
	if cfg.VideoTwoPass && cfg.VideoCodec == config.CodecVP9 {
		firstPass = append(append([]string{}, args...),
			"-an", "-sn", "-pass", "1", "-passlogfile", OutputToken+".pass", "-f", "null", "-")
	}

	args = append(args, "-c:a", "libopus", "-map_metadata", "-1", "-metadata", "comment="+CommentTag())
	if firstPass != nil {
		args = append(args, "-pass", "2", "-passlogfile", OutputToken+".pass")
	}
	args = append(args, "-f", "webm", OutputToken)

	return Strategy{Tool: ToolFFmpeg, Args: args, FirstPass: firstPass, Container: "webm", Kind: classify.KindVideo}
}

func imageStrategy(cfg *config.Config) Strategy {
	args := []string{
		"convert", InputToken,
		"-strip",
		"-quality", fmt.Sprint(cfg.ImageQuality),
		"-comment", CommentTag(),
		"jpeg:" + OutputToken,
	}
	return Strategy{Tool: ToolGM, Args: args, Container: "jpg", Kind: classify.KindImage}
}

func audioStrategy(cfg *config.Config) Strategy {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y", "-i", InputToken,
		"-vn",
		"-c:a", "libopus", "-b:a", fmt.Sprintf("%dk", cfg.AudioBitrate),
		"-map_metadata", "-1", "-metadata", "comment=" + CommentTag(),
		"-f", "ogg", OutputToken,
	}
	return Strategy{Tool: ToolFFmpeg, Args: args, Container: "ogg", Kind: classify.KindAudio}
}

// CommandLine renders the main command arguments with real paths.
func (s Strategy) CommandLine(input, output string) []string {
	return expand(s.Args, input, output)
}

// FirstPassLine renders the analysis pass arguments, or nil when the
// strategy has none.
func (s Strategy) FirstPassLine(input, output string) []string {
	if s.FirstPass == nil {
		return nil
	}
	return expand(s.FirstPass, input, output)
}

// Render returns a shell-like view of the main command for dry runs.
func (s Strategy) Render(input, output string) string {
	return s.Tool + " " + strings.Join(s.CommandLine(input, output), " ")
}

func expand(args []string, input, output string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		a = strings.ReplaceAll(a, InputToken, input)
		a = strings.ReplaceAll(a, OutputToken, output)
		out[i] = a
	}
	return out
}
