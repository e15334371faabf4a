package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Runner shells out to the yt-dlp binary. Every invocation inherits
// the caller's context, so timeouts and cancellation kill the
// subprocess.
type Runner struct {
	binPath string
	log     *logrus.Entry

	// MaxAttempts and RetryDelay shape the download retry loop.
	MaxAttempts int
	RetryDelay  time.Duration
}

func NewRunner(binPath string, log *logrus.Logger) (*Runner, error) {
	const op = "ytdlp.NewRunner"

	resolved, err := exec.LookPath(binPath)
	if err != nil {
		return nil, newCommandError(op, err, fmt.Sprintf("yt-dlp binary not found: %s", binPath))
	}

	return &Runner{
		binPath:     resolved,
		log:         log.WithField("component", "ytdlp"),
		MaxAttempts: defaultMaxAttempts,
		RetryDelay:  defaultRetryDelay,
	}, nil
}

func (r *Runner) Run(ctx context.Context, args ...string) ([]byte, error) {
	const op = "Runner.Run"

	r.log.WithField("args", strings.Join(args, " ")).Debug("Executing yt-dlp")

	cmd := exec.CommandContext(ctx, r.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, newCommandError(op, ctx.Err(), "yt-dlp cancelled")
		}
		msg := lastLine(stderr.String())
		r.log.WithError(err).WithField("stderr", msg).Error("yt-dlp failed")
		return nil, newCommandError(op, err, msg)
	}

	return stdout.Bytes(), nil
}

// lastLine extracts the final non-empty stderr line, which is where
// yt-dlp reports its error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "unknown error"
}
