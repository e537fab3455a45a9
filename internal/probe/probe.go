// Package probe reads metadata comments from media files so earlier
// outputs can be recognized and skipped.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"shrinkray/internal/classify"
	"shrinkray/internal/errors"
	"shrinkray/internal/executor"
)

// ffprobeOutput is the subset of ffprobe JSON we care about.
type ffprobeOutput struct {
	Format ffprobeFormat `json:"format"`
}

type ffprobeFormat struct {
	Tags map[string]string `json:"tags"`
}

// Comment returns the metadata comment of a media file, or the empty
// string when it has none.
func Comment(ctx context.Context, tools *executor.Toolbox, path string, kind classify.Kind) (string, error) {
	switch kind {
	case classify.KindVideo, classify.KindAudio:
		return ffprobeComment(ctx, tools, path)
	case classify.KindImage:
		return gmComment(ctx, tools, path)
	default:
		return "", nil
	}
}

func ffprobeComment(ctx context.Context, tools *executor.Toolbox, path string) (string, error) {
	bin, err := tools.Lookup("ffprobe")
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return "", errors.WrapExecError("ffprobe", err, stderrOf(err))
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return "", errors.NewIOError("failed to parse ffprobe output", err)
	}

	// Container formats disagree about tag key casing
	for key, value := range parsed.Format.Tags {
		if strings.EqualFold(key, "comment") {
			return strings.TrimSpace(value), nil
		}
	}

	return "", nil
}

func gmComment(ctx context.Context, tools *executor.Toolbox, path string) (string, error) {
	bin, err := tools.Lookup("gm")
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, bin, "identify", "-verbose", path)
	output, err := cmd.Output()
	if err != nil {
		return "", errors.WrapExecError("gm", err, stderrOf(err))
	}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if comment, ok := strings.CutPrefix(line, "Comment:"); ok {
			return strings.TrimSpace(comment), nil
		}
	}

	return "", nil
}

func stderrOf(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return ""
}
