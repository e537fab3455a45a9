package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shrinkray/internal/classify"
	"shrinkray/internal/errors"
	"shrinkray/internal/executor"
)

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFfprobeComment(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffprobe",
		`echo '{"format":{"tags":{"COMMENT":"shrinkray/0.3.0","encoder":"libwebm"}}}'`)
	t.Setenv(executor.EnvOverride("ffprobe"), stub)

	comment, err := Comment(context.Background(), executor.NewToolbox(), "/media/clip.webm", classify.KindVideo)
	if err != nil {
		t.Fatalf("Comment failed: %v", err)
	}
	if comment != "shrinkray/0.3.0" {
		t.Errorf("comment = %q, want shrinkray/0.3.0", comment)
	}
}

func TestFfprobeCommentLowercaseKey(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffprobe",
		`echo '{"format":{"tags":{"comment":"holiday trip"}}}'`)
	t.Setenv(executor.EnvOverride("ffprobe"), stub)

	comment, err := Comment(context.Background(), executor.NewToolbox(), "/media/clip.mp4", classify.KindAudio)
	if err != nil {
		t.Fatalf("Comment failed: %v", err)
	}
	if comment != "holiday trip" {
		t.Errorf("comment = %q, want holiday trip", comment)
	}
}

func TestFfprobeNoComment(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffprobe", `echo '{"format":{}}'`)
	t.Setenv(executor.EnvOverride("ffprobe"), stub)

	comment, err := Comment(context.Background(), executor.NewToolbox(), "/media/clip.mp4", classify.KindVideo)
	if err != nil {
		t.Fatalf("Comment failed: %v", err)
	}
	if comment != "" {
		t.Errorf("comment = %q, want empty", comment)
	}
}

func TestGmComment(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "gm", `cat <<'EOF'
Image: photo.jpg
  Format: JPEG (Joint Photographic Experts Group JFIF format)
  Geometry: 4032x3024
  Comment: shrinkray/0.2.1
  Compression: JPEG
EOF`)
	t.Setenv(executor.EnvOverride("gm"), stub)

	comment, err := Comment(context.Background(), executor.NewToolbox(), "/media/photo.jpg", classify.KindImage)
	if err != nil {
		t.Fatalf("Comment failed: %v", err)
	}
	if comment != "shrinkray/0.2.1" {
		t.Errorf("comment = %q, want shrinkray/0.2.1", comment)
	}
}

func TestGmNoComment(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "gm", `cat <<'EOF'
Image: photo.jpg
  Format: PNG
EOF`)
	t.Setenv(executor.EnvOverride("gm"), stub)

	comment, err := Comment(context.Background(), executor.NewToolbox(), "/media/photo.png", classify.KindImage)
	if err != nil {
		t.Fatalf("Comment failed: %v", err)
	}
	if comment != "" {
		t.Errorf("comment = %q, want empty", comment)
	}
}

func TestCommentUnknownKind(t *testing.T) {
	// Unknown files have no comment to probe; no tool should run
	comment, err := Comment(context.Background(), executor.NewToolbox(), "/media/notes.txt", classify.KindUnknown)
	if err != nil {
		t.Fatalf("Comment failed: %v", err)
	}
	if comment != "" {
		t.Errorf("comment = %q, want empty", comment)
	}
}

func TestCommentToolFailure(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffprobe", `echo "unreadable" >&2; exit 1`)
	t.Setenv(executor.EnvOverride("ffprobe"), stub)

	_, err := Comment(context.Background(), executor.NewToolbox(), "/media/clip.mp4", classify.KindVideo)
	if !errors.IsKind(err, errors.KindCommand) {
		t.Errorf("expected command error, got %v", err)
	}
}
