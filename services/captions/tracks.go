package captions

import (
	"context"
	"fmt"
	"strings"

	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/youtube"
)

func (s *Service) fromPlayerAPI(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	pr, err := s.yt.Player(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return s.fromPlayerResponse(ctx, pr)
}

func (s *Service) fromWatchPage(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	pr, err := s.yt.WatchPagePlayer(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return s.fromPlayerResponse(ctx, pr)
}

func (s *Service) fromPlayerResponse(ctx context.Context, pr *youtube.PlayerResponse) ([]models.TranscriptSegment, error) {
	if err := pr.Playable(); err != nil {
		return nil, err
	}

	track := selectTrack(pr.Tracks(), s.cfg.Languages)
	if track == nil {
		return nil, fmt.Errorf("no caption tracks listed")
	}

	data, err := s.yt.FetchTrack(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	return parseJSON3(data)
}

// selectTrack picks the caption track to fetch. Earlier preferred
// languages outrank later ones, an exact language match outranks a
// regional variant, and uploaded tracks outrank ASR within the same
// language rank.
func selectTrack(tracks []youtube.CaptionTrack, languages []string) *youtube.CaptionTrack {
	var (
		best      *youtube.CaptionTrack
		bestScore = -1
	)

	for i := range tracks {
		t := &tracks[i]

		score := 0
		for rank, lang := range languages {
			switch {
			case t.LanguageCode == lang:
				score = 100 - rank*10
			case strings.HasPrefix(t.LanguageCode, lang+"-") && score == 0:
				score = 90 - rank*10
			}
		}
		if t.Kind != "asr" {
			score += 5
		}

		if score > bestScore {
			best = t
			bestScore = score
		}
	}
	return best
}
