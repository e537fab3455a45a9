package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shrinkray/internal/config"
	"shrinkray/internal/executor"
	"shrinkray/internal/reporter"
)

// recorder captures reporter events for assertions.
type recorder struct {
	mu       sync.Mutex
	started  []reporter.RunInfo
	working  []string
	outcomes []reporter.FileOutcome
	warnings []string
	summary  *reporter.RunSummary
}

func (r *recorder) RunStarted(info reporter.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, info)
}

func (r *recorder) FileStarted(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.working = append(r.working, path)
}

func (r *recorder) FileOutcome(outcome reporter.FileOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, message)
}

func (r *recorder) RunComplete(summary reporter.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = &summary
}

func (r *recorder) outcomeFor(t *testing.T, path string) reporter.FileOutcome {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outcomes {
		if o.Path == path {
			return o
		}
	}
	t.Fatalf("no outcome recorded for %s", path)
	return reporter.FileOutcome{}
}

func jpegBytes(size int) []byte {
	header := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	return append(header, make([]byte, size-len(header))...)
}

func pngBytes(size int) []byte {
	header := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	return append(header, make([]byte, size-len(header))...)
}

func mp4Bytes(size int) []byte {
	header := []byte("\x00\x00\x00\x14ftypisom\x00\x00\x02\x00isom")
	return append(header, make([]byte, size-len(header))...)
}

func wavBytes(size int) []byte {
	header := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	return append(header, make([]byte, size-len(header))...)
}

// webmBytes starts with the EBML header a real muxer writes: version
// fields, then a DocType element holding "webm".
func webmBytes(size int) []byte {
	header := []byte{
		0x1A, 0x45, 0xDF, 0xA3, 0x9F,
		0x42, 0x86, 0x81, 0x01,
		0x42, 0xF7, 0x81, 0x01,
		0x42, 0xF2, 0x81, 0x04,
		0x42, 0xF3, 0x81, 0x08,
		0x42, 0x82, 0x84, 'w', 'e', 'b', 'm',
		0x42, 0x87, 0x81, 0x04,
		0x42, 0x85, 0x81, 0x02,
	}
	return append(header, make([]byte, size-len(header))...)
}

func oggBytes(size int) []byte {
	header := append([]byte("OggS\x00"), make([]byte, 23)...)
	header = append(header, []byte("OpusHead\x00\x00")...)
	return append(header, make([]byte, size-len(header))...)
}

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func baseConfig(root string) *config.Config {
	cfg := config.NewConfig()
	cfg.Roots = []string{root}
	cfg.Workers = 3
	cfg.SkipTagged = false
	return cfg
}

func TestRunStatsAdd(t *testing.T) {
	var stats RunStats
	stats.Add(Outcome{Path: "/a.jpg", Status: StatusShrunk, OriginalSize: 1000, NewSize: 400})
	stats.Add(Outcome{Path: "/b.mp4", Status: StatusShrunk, OriginalSize: 5000, NewSize: 2000})
	stats.Add(Outcome{Path: "/c.txt", Status: StatusSkipped, Reason: "unsupported"})
	stats.Add(Outcome{Path: "/d.wav", Status: StatusFailed, Err: fmt.Errorf("encoder blew up")})

	if stats.Scanned != 4 {
		t.Errorf("Scanned = %d, want 4", stats.Scanned)
	}
	if stats.Shrunk != 2 || stats.Skipped != 1 || stats.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", stats.Shrunk, stats.Skipped, stats.Failed)
	}
	if got := stats.BytesSaved(); got != 3600 {
		t.Errorf("BytesSaved = %d, want 3600", got)
	}
	if len(stats.Failures) != 1 || stats.Failures[0].Path != "/d.wav" {
		t.Fatalf("Failures = %+v", stats.Failures)
	}
	if stats.Failures[0].Reason != "encoder blew up" {
		t.Errorf("failure reason = %q", stats.Failures[0].Reason)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusShrunk, "shrunk"},
		{StatusSkipped, "skipped"},
		{StatusFailed, "failed"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

// TestRunEndToEnd drives a mixed directory through stubbed encoders: two
// media kinds shrink and change container, one stays in place, a text file
// and a tiny image are skipped.
func TestRunEndToEnd(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "photo.jpg"), jpegBytes(2000))
	write(t, filepath.Join(root, "clip.mp4"), mp4Bytes(5000))
	write(t, filepath.Join(root, "song.wav"), wavBytes(3000))
	write(t, filepath.Join(root, "notes.txt"), []byte("just some notes about the files here"))
	write(t, filepath.Join(root, "tiny.png"), pngBytes(200))

	fixtures := t.TempDir()
	jpegOut := filepath.Join(fixtures, "out.jpg")
	webmOut := filepath.Join(fixtures, "out.webm")
	oggOut := filepath.Join(fixtures, "out.ogg")
	write(t, jpegOut, jpegBytes(600))
	write(t, webmOut, webmBytes(800))
	write(t, oggOut, oggBytes(500))

	gmStub := writeStub(t, fixtures, "gm", fmt.Sprintf(
		`for a; do out="$a"; done
out="${out#jpeg:}"
cp %q "$out"`, jpegOut))
	ffmpegStub := writeStub(t, fixtures, "ffmpeg", fmt.Sprintf(
		`fix=%q
case "$*" in *"-f ogg"*) fix=%q ;; esac
for a; do out="$a"; done
cp "$fix" "$out"`, webmOut, oggOut))
	t.Setenv(executor.EnvOverride("gm"), gmStub)
	t.Setenv(executor.EnvOverride("ffmpeg"), ffmpegStub)

	rec := &recorder{}
	stats, err := Run(context.Background(), baseConfig(root), rec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Scanned != 5 {
		t.Errorf("Scanned = %d, want 5", stats.Scanned)
	}
	if stats.Shrunk != 3 || stats.Skipped != 2 || stats.Failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 3/2/0", stats.Shrunk, stats.Skipped, stats.Failed)
	}
	if stats.OriginalBytes != 10000 || stats.ShrunkBytes != 1900 {
		t.Errorf("bytes = %d -> %d, want 10000 -> 1900", stats.OriginalBytes, stats.ShrunkBytes)
	}
	if got := stats.BytesSaved(); got != 8100 {
		t.Errorf("BytesSaved = %d, want 8100", got)
	}

	if len(rec.outcomes) != 5 {
		t.Errorf("recorded %d outcomes, want 5", len(rec.outcomes))
	}
	if len(rec.working) != 3 {
		t.Errorf("FileStarted fired %d times, want 3 (skipped files are never dispatched)", len(rec.working))
	}
	notes := rec.outcomeFor(t, filepath.Join(root, "notes.txt"))
	if notes.Status != "skipped" || notes.Reason != "unsupported" {
		t.Errorf("notes.txt outcome = %s/%s", notes.Status, notes.Reason)
	}
	tiny := rec.outcomeFor(t, filepath.Join(root, "tiny.png"))
	if tiny.Status != "skipped" || tiny.Reason != "below-min-size" {
		t.Errorf("tiny.png outcome = %s/%s", tiny.Status, tiny.Reason)
	}
	clip := rec.outcomeFor(t, filepath.Join(root, "clip.mp4"))
	if clip.Status != "shrunk" || clip.FinalPath != filepath.Join(root, "clip.webm") {
		t.Errorf("clip.mp4 outcome = %s final %s", clip.Status, clip.FinalPath)
	}
	if rec.summary == nil {
		t.Fatal("RunComplete never fired")
	}
	if rec.summary.Cancelled {
		t.Error("summary marked cancelled")
	}
	if rec.summary.BytesSaved != 8100 {
		t.Errorf("summary BytesSaved = %d, want 8100", rec.summary.BytesSaved)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]bool)
	for _, e := range entries {
		got[e.Name()] = true
	}
	want := []string{"photo.jpg", "clip.webm", "song.ogg", "notes.txt", "tiny.png"}
	if len(got) != len(want) {
		t.Errorf("directory holds %v", got)
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("missing %s after run", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(root, "photo.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 600 {
		t.Errorf("photo.jpg is %d bytes, want 600", len(data))
	}
}

func TestRunManyFilesBoundedWorkers(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 9; i++ {
		write(t, filepath.Join(root, fmt.Sprintf("pic%d.jpg", i)), jpegBytes(1500))
	}

	fixtures := t.TempDir()
	jpegOut := filepath.Join(fixtures, "out.jpg")
	write(t, jpegOut, jpegBytes(500))
	gmStub := writeStub(t, fixtures, "gm", fmt.Sprintf(
		`for a; do out="$a"; done
out="${out#jpeg:}"
cp %q "$out"`, jpegOut))
	t.Setenv(executor.EnvOverride("gm"), gmStub)

	cfg := baseConfig(root)
	cfg.Workers = 4

	rec := &recorder{}
	stats, err := Run(context.Background(), cfg, rec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Scanned != 9 || stats.Shrunk != 9 {
		t.Errorf("scanned/shrunk = %d/%d, want 9/9", stats.Scanned, stats.Shrunk)
	}
	if len(rec.outcomes) != 9 {
		t.Errorf("recorded %d outcomes, want exactly 9", len(rec.outcomes))
	}
	seen := make(map[string]int)
	for _, o := range rec.outcomes {
		seen[o.Path]++
	}
	for path, n := range seen {
		if n != 1 {
			t.Errorf("%s produced %d outcomes", path, n)
		}
	}
}

func TestRunFailedEncode(t *testing.T) {
	root := t.TempDir()
	photo := filepath.Join(root, "photo.jpg")
	origData := jpegBytes(2000)
	write(t, photo, origData)

	fixtures := t.TempDir()
	gmStub := writeStub(t, fixtures, "gm", `echo "simulated encoder crash" >&2
exit 1`)
	t.Setenv(executor.EnvOverride("gm"), gmStub)

	stats, err := Run(context.Background(), baseConfig(root), &recorder{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Failed != 1 || stats.Shrunk != 0 {
		t.Errorf("failed/shrunk = %d/%d, want 1/0", stats.Failed, stats.Shrunk)
	}
	if len(stats.Failures) != 1 || stats.Failures[0].Path != photo {
		t.Fatalf("Failures = %+v", stats.Failures)
	}

	data, err := os.ReadFile(photo)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(origData) {
		t.Error("original was modified by a failed encode")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover files after failure: %v", entries)
	}
}

func TestRunNotSmallerEnough(t *testing.T) {
	root := t.TempDir()
	photo := filepath.Join(root, "photo.jpg")
	write(t, photo, jpegBytes(1100))

	fixtures := t.TempDir()
	jpegOut := filepath.Join(fixtures, "out.jpg")
	write(t, jpegOut, jpegBytes(1090))
	gmStub := writeStub(t, fixtures, "gm", fmt.Sprintf(
		`for a; do out="$a"; done
out="${out#jpeg:}"
cp %q "$out"`, jpegOut))
	t.Setenv(executor.EnvOverride("gm"), gmStub)

	rec := &recorder{}
	stats, err := Run(context.Background(), baseConfig(root), rec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Skipped != 1 || stats.Shrunk != 0 {
		t.Errorf("skipped/shrunk = %d/%d, want 1/0", stats.Skipped, stats.Shrunk)
	}
	outcome := rec.outcomeFor(t, photo)
	if outcome.Reason != "not-smaller-enough" {
		t.Errorf("reason = %q, want not-smaller-enough", outcome.Reason)
	}

	data, err := os.ReadFile(photo)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1100 {
		t.Errorf("original is %d bytes, want untouched 1100", len(data))
	}
}

func TestRunDryRun(t *testing.T) {
	root := t.TempDir()
	photo := filepath.Join(root, "photo.jpg")
	clip := filepath.Join(root, "clip.mp4")
	write(t, photo, jpegBytes(2000))
	write(t, clip, mp4Bytes(5000))

	// Any tool invocation would fail loudly.
	t.Setenv(executor.EnvOverride("gm"), "/nonexistent/gm")
	t.Setenv(executor.EnvOverride("ffmpeg"), "/nonexistent/ffmpeg")

	cfg := baseConfig(root)
	cfg.DryRun = true

	rec := &recorder{}
	stats, err := Run(context.Background(), cfg, rec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Scanned != 2 || stats.Skipped != 2 || stats.Failed != 0 {
		t.Errorf("scanned/skipped/failed = %d/%d/%d, want 2/2/0",
			stats.Scanned, stats.Skipped, stats.Failed)
	}

	outcome := rec.outcomeFor(t, photo)
	if outcome.Reason != ReasonDryRun {
		t.Errorf("reason = %q, want %q", outcome.Reason, ReasonDryRun)
	}
	if outcome.Command == "" {
		t.Error("dry run outcome has no command")
	}

	for _, path := range []string{photo, clip} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("%s missing after dry run: %v", path, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s was truncated", path)
		}
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("dry run created files: %v", entries)
	}
}

func TestRunSkipsTaggedFiles(t *testing.T) {
	root := t.TempDir()
	song := filepath.Join(root, "song.wav")
	write(t, song, wavBytes(3000))

	fixtures := t.TempDir()
	ffprobeStub := writeStub(t, fixtures, "ffprobe",
		`echo '{"format":{"tags":{"comment":"shrinkray/0.2.0"}}}'`)
	ffmpegStub := writeStub(t, fixtures, "ffmpeg", `exit 9`)
	t.Setenv(executor.EnvOverride("ffprobe"), ffprobeStub)
	t.Setenv(executor.EnvOverride("ffmpeg"), ffmpegStub)

	cfg := baseConfig(root)
	cfg.SkipTagged = true

	rec := &recorder{}
	stats, err := Run(context.Background(), cfg, rec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Skipped != 1 || stats.Failed != 0 {
		t.Errorf("skipped/failed = %d/%d, want 1/0", stats.Skipped, stats.Failed)
	}
	outcome := rec.outcomeFor(t, song)
	if outcome.Reason != ReasonAlreadyShrunk {
		t.Errorf("reason = %q, want %q", outcome.Reason, ReasonAlreadyShrunk)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "photo.jpg"), jpegBytes(2000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	stats, err := Run(ctx, baseConfig(root), rec)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	if stats.Scanned != 0 {
		t.Errorf("Scanned = %d, want 0", stats.Scanned)
	}
	if rec.summary == nil || !rec.summary.Cancelled {
		t.Error("summary not marked cancelled")
	}
}

func TestRunCancelledMidFlight(t *testing.T) {
	root := t.TempDir()
	originals := map[string][]byte{
		"a.mp4": mp4Bytes(4000),
		"b.mp4": mp4Bytes(4000),
		"c.mp4": mp4Bytes(4000),
	}
	for name, data := range originals {
		write(t, filepath.Join(root, name), data)
	}

	fixtures := t.TempDir()
	sentinel := filepath.Join(fixtures, "started")
	ffmpegStub := writeStub(t, fixtures, "ffmpeg", fmt.Sprintf(
		`touch %q
exec sleep 30`, sentinel))
	t.Setenv(executor.EnvOverride("ffmpeg"), ffmpegStub)

	cfg := baseConfig(root)
	cfg.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	var stats *RunStats
	var runErr error
	go func() {
		defer close(done)
		stats, runErr = Run(ctx, cfg, &recorder{})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(sentinel); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("encoder stub never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if runErr == nil {
		t.Error("expected a cancellation error")
	}
	// The interrupted job always fails; jobs dispatched in the instant
	// after cancellation fail too, so every scanned file must be a failure.
	if stats.Failed < 1 || stats.Shrunk != 0 || stats.Scanned != stats.Failed {
		t.Errorf("scanned/shrunk/failed = %d/%d/%d, want all scanned failed",
			stats.Scanned, stats.Shrunk, stats.Failed)
	}

	for name, data := range originals {
		got, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			t.Fatalf("%s missing after cancellation: %v", name, err)
		}
		if len(got) != len(data) {
			t.Errorf("%s was modified", name)
		}
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("leftover files after cancellation: %v", entries)
	}
}

func TestRunToolMissing(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "photo.jpg"), jpegBytes(2000))

	t.Setenv(executor.EnvOverride("gm"), "/nonexistent/gm")

	stats, err := Run(context.Background(), baseConfig(root), &recorder{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if len(stats.Failures) != 1 {
		t.Fatalf("Failures = %+v", stats.Failures)
	}
}
