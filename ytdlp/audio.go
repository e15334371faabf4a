package ytdlp

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Audio-only selection, preferring webm so no remux is needed.
const audioFormat = "bestaudio[ext=webm]/bestaudio"

const maxRetryBackoff = 30 * time.Second

// DownloadAudio fetches the best audio-only stream for url into
// destDir and returns the downloaded file path. yt-dlp picks the
// extension, so the result is located by glob. Transient failures are
// retried with jittered exponential backoff up to MaxAttempts.
func (r *Runner) DownloadAudio(ctx context.Context, url, destDir string) (string, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		path, err := r.downloadAudioOnce(ctx, url, destDir)
		if err == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err

		r.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     attempts,
		}).Warn("Audio download attempt failed")

		if attempt == attempts {
			break
		}
		select {
		case <-time.After(r.backoff(attempt)):
		case <-ctx.Done():
			return "", lastErr
		}
	}
	return "", lastErr
}

func (r *Runner) downloadAudioOnce(ctx context.Context, url, destDir string) (string, error) {
	const op = "Runner.DownloadAudio"

	_, err := r.Run(ctx,
		"-f", audioFormat,
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(destDir, "audio.%(ext)s"),
		url,
	)
	if err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "audio.*"))
	if err != nil {
		return "", newCommandError(op, err, "failed to locate downloaded audio")
	}
	if len(matches) == 0 {
		return "", newCommandError(op, nil, "yt-dlp produced no audio file")
	}
	return matches[0], nil
}

// backoff doubles RetryDelay per attempt, caps it, and adds up to 50%
// jitter so concurrent downloads do not retry in lockstep.
func (r *Runner) backoff(attempt int) time.Duration {
	d := time.Duration(float64(r.RetryDelay) * math.Pow(2, float64(attempt-1)))
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int63n(half))
	}
	return d
}
