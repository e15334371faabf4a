package stt

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
)

// Chain tries transcription backends in order and returns the first
// success. Unavailable backends are skipped without counting as
// failures.
type Chain struct {
	backends []Transcriber
	log      *logrus.Entry
}

func NewChain(log *logrus.Logger, backends ...Transcriber) *Chain {
	return &Chain{
		backends: backends,
		log:      log.WithField("component", "stt.chain"),
	}
}

// Transcribe runs the chain and reports which backend produced the
// result. OnStart fires before each attempt, so listeners learn the
// method as soon as a backend is selected.
func (c *Chain) Transcribe(ctx context.Context, audioPath string, cb Callback) ([]models.TranscriptSegment, models.Method, error) {
	const op = "TranscriberChain.Transcribe"

	var lastErr error
	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return nil, "", errors.Internal(op, err, "transcription cancelled")
		}
		if !b.Available(ctx) {
			c.log.WithField("backend", b.Name()).Info("Skipping unavailable transcription backend")
			continue
		}

		if cb.OnStart != nil {
			cb.OnStart(b.Name())
		}

		segments, err := b.Transcribe(ctx, audioPath, cb)
		if err != nil {
			c.log.WithError(err).WithField("backend", b.Name()).Warn("Transcription backend failed")
			lastErr = err
			continue
		}

		c.log.WithFields(logrus.Fields{
			"backend":  b.Name(),
			"segments": len(segments),
		}).Info("Transcription complete")
		return segments, b.Name(), nil
	}

	if lastErr == nil {
		return nil, "", errors.TranscriptionFailed(op, nil, "no transcription backend available")
	}
	return nil, "", errors.TranscriptionFailed(op, lastErr, "all transcription backends failed")
}
