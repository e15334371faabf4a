package captions

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nijaru/yt-scribe/models"
)

// json3 is the caption wire format behind fmt=json3: a list of timed
// events, each holding word-level segs with offsets relative to the
// event start.
type json3Response struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	TStartMs    int64      `json:"tStartMs"`
	DDurationMs int64      `json:"dDurationMs"`
	Segs        []json3Seg `json:"segs"`
}

type json3Seg struct {
	Utf8      string `json:"utf8"`
	TOffsetMs int64  `json:"tOffsetMs"`
}

func parseJSON3(data []byte) ([]models.TranscriptSegment, error) {
	var raw json3Response
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse json3 captions: %w", err)
	}

	var segments []models.TranscriptSegment
	for _, ev := range raw.Events {
		// Events without segs carry window styling, not text.
		if len(ev.Segs) == 0 {
			continue
		}

		var (
			sb    strings.Builder
			words []models.Word
		)
		for _, seg := range ev.Segs {
			text := strings.TrimSpace(seg.Utf8)
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
			words = append(words, models.Word{
				Text:    text,
				StartMs: ev.TStartMs + seg.TOffsetMs,
			})
		}

		text := sb.String()
		if text == "" {
			continue
		}
		segments = append(segments, models.TranscriptSegment{
			Text:     text,
			Offset:   float64(ev.TStartMs) / 1000,
			Duration: float64(ev.DDurationMs) / 1000,
			Words:    words,
		})
	}

	return segments, nil
}
