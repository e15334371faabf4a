package captions

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/validation"
)

func (s *Service) fromYTDLP(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("yt-dlp unavailable")
	}

	dir, err := os.MkdirTemp(s.tempDir, "subs-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	lang := "en"
	if len(s.cfg.Languages) > 0 {
		lang = s.cfg.Languages[0]
	}

	path, err := s.runner.DownloadSubtitles(ctx, validation.WatchURL(videoID), lang, dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}
	return parseVTT(string(data))
}

var (
	vttTimestampRe = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2})\.(\d{3}) --> (\d{2,}):(\d{2}):(\d{2})\.(\d{3})`)
	vttTagRe       = regexp.MustCompile(`<[^>]+>`)
)

// parseVTT converts a WebVTT cue file into segments. Auto-generated
// tracks repeat the previous cue's line at the top of each cue, so a
// line equal to the last emitted one is dropped.
func parseVTT(vtt string) ([]models.TranscriptSegment, error) {
	var (
		segments []models.TranscriptSegment
		lastLine string
	)

	lines := strings.Split(vtt, "\n")
	i := 0
	for i < len(lines) {
		m := vttTimestampRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			i++
			continue
		}
		start := vttTime(m[1], m[2], m[3], m[4])
		end := vttTime(m[5], m[6], m[7], m[8])
		i++

		var parts []string
		for i < len(lines) {
			raw := strings.TrimSpace(lines[i])
			if raw == "" || vttTimestampRe.MatchString(raw) {
				break
			}
			i++

			text := strings.TrimSpace(vttTagRe.ReplaceAllString(raw, ""))
			if text == "" || text == lastLine || isSoundTag(text) {
				continue
			}
			parts = append(parts, text)
			lastLine = text
		}

		text := strings.Join(parts, " ")
		if text == "" {
			continue
		}
		segments = append(segments, models.TranscriptSegment{
			Text:     text,
			Offset:   start,
			Duration: end - start,
		})
	}

	return segments, nil
}

// isSoundTag reports non-speech cues like [Music] or [Applause].
func isSoundTag(text string) bool {
	return strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]")
}

func vttTime(h, m, s, ms string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	msi, _ := strconv.Atoi(ms)
	return float64(hh)*3600 + float64(mm)*60 + float64(ss) + float64(msi)/1000
}
