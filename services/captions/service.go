// Package captions pulls pre-existing subtitle tracks for a video.
// Three sources are tried in a fixed order: the player API, the watch
// page, and yt-dlp. The first one that yields text wins.
package captions

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/youtube"
	"github.com/nijaru/yt-scribe/ytdlp"
)

type Service struct {
	yt      *youtube.Client
	runner  *ytdlp.Runner
	cfg     config.CaptionsConfig
	tempDir string
	log     *logrus.Entry
}

// NewService builds the extractor. runner may be nil when yt-dlp is
// not installed; the last tier is then skipped.
func NewService(yt *youtube.Client, runner *ytdlp.Runner, cfg config.CaptionsConfig, tempDir string, log *logrus.Logger) *Service {
	return &Service{
		yt:      yt,
		runner:  runner,
		cfg:     cfg,
		tempDir: tempDir,
		log:     log.WithField("component", "captions"),
	}
}

type attempt struct {
	name string
	fn   func(ctx context.Context, videoID string) ([]models.TranscriptSegment, error)
}

func (s *Service) attempts() []attempt {
	return []attempt{
		{"player_api", s.fromPlayerAPI},
		{"watch_page", s.fromWatchPage},
		{"ytdlp", s.fromYTDLP},
	}
}

// Extract returns the caption track for videoID as segments. Each
// source gets its own timeout; sources that error or come back empty
// fall through to the next. When none deliver, the last failure is
// wrapped in a NO_CAPTIONS error.
func (s *Service) Extract(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	const op = "CaptionService.Extract"

	var lastErr error
	for _, att := range s.attempts() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Internal(op, err, "context cancelled")
		}

		tierCtx, cancel := context.WithTimeout(ctx, s.cfg.TierTimeout)
		segments, err := att.fn(tierCtx, videoID)
		cancel()

		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"video_id": videoID,
				"tier":     att.name,
			}).Debug("Caption tier failed")
			lastErr = err
			continue
		}
		if len(segments) == 0 {
			lastErr = fmt.Errorf("tier %s returned no segments", att.name)
			continue
		}

		s.log.WithFields(logrus.Fields{
			"video_id": videoID,
			"tier":     att.name,
			"segments": len(segments),
		}).Info("Captions extracted")
		return segments, nil
	}

	return nil, errors.NoCaptions(op, lastErr, "no captions available for this video")
}
