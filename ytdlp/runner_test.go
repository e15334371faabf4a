package ytdlp

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// writeFakeBin installs a shell script standing in for yt-dlp and
// returns its path.
func writeFakeBin(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("failed to write fake binary: %v", err)
	}
	return path
}

// parseOutDir extracts the directory of the -o template so fakes can
// drop files where the runner expects them.
const parseOutDir = `
out_tmpl=""
prev=""
for arg in "$@"; do
    if [ "$prev" = "-o" ]; then out_tmpl="$arg"; fi
    prev="$arg"
done
out_dir=$(dirname "$out_tmpl")
`

func TestNewRunnerMissingBinary(t *testing.T) {
	if _, err := NewRunner("yt-dlp-test-binary-does-not-exist", testLogger()); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestRunCapturesStdout(t *testing.T) {
	bin := writeFakeBin(t, `echo '{"ok":true}'`)
	r, err := NewRunner(bin, testLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	out, err := r.Run(context.Background(), "--version")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != `{"ok":true}` {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRunSurfacesStderr(t *testing.T) {
	bin := writeFakeBin(t, `echo "ERROR: [youtube] abc: Video unavailable" >&2; exit 1`)
	r, err := NewRunner(bin, testLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	_, err = r.Run(context.Background(), "https://example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Video unavailable") {
		t.Errorf("expected stderr detail in error, got %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	bin := writeFakeBin(t, `sleep 5`)
	r, err := NewRunner(bin, testLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := r.Run(ctx, "anything"); err == nil {
		t.Fatal("expected error after cancellation")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("cancellation did not kill the subprocess")
	}
}

func TestDownloadAudio(t *testing.T) {
	bin := writeFakeBin(t, parseOutDir+`printf 'audio-bytes' > "$out_dir/audio.webm"`)
	r, err := NewRunner(bin, testLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	dest := t.TempDir()
	path, err := r.DownloadAudio(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", dest)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if filepath.Base(path) != "audio.webm" {
		t.Errorf("unexpected audio path: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("audio file missing: %v", err)
	}
}

func TestDownloadAudioNoOutput(t *testing.T) {
	bin := writeFakeBin(t, `exit 0`)
	r, err := NewRunner(bin, testLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	r.RetryDelay = time.Millisecond

	if _, err := r.DownloadAudio(context.Background(), "https://example.com", t.TempDir()); err == nil {
		t.Fatal("expected error when no file is produced")
	}
}

func TestDownloadAudioRetries(t *testing.T) {
	bin := writeFakeBin(t, parseOutDir+`
flag="$(dirname "$0")/attempted"
if [ ! -f "$flag" ]; then
    touch "$flag"
    echo "ERROR: HTTP Error 429: Too Many Requests" >&2
    exit 1
fi
printf 'audio-bytes' > "$out_dir/audio.webm"`)
	r, err := NewRunner(bin, testLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	r.RetryDelay = time.Millisecond

	path, err := r.DownloadAudio(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", t.TempDir())
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if filepath.Base(path) != "audio.webm" {
		t.Errorf("unexpected audio path: %s", path)
	}
}

func TestDownloadSubtitles(t *testing.T) {
	bin := writeFakeBin(t, parseOutDir+`printf 'WEBVTT\n' > "$out_dir/subs.en.vtt"`)
	r, err := NewRunner(bin, testLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	path, err := r.DownloadSubtitles(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "en", t.TempDir())
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if filepath.Base(path) != "subs.en.vtt" {
		t.Errorf("unexpected subtitle path: %s", path)
	}
}

func TestDownloadSubtitlesNone(t *testing.T) {
	bin := writeFakeBin(t, `exit 0`)
	r, err := NewRunner(bin, testLogger())
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	if _, err := r.DownloadSubtitles(context.Background(), "https://example.com", "en", t.TempDir()); err == nil {
		t.Fatal("expected error when no subtitles are written")
	}
}
