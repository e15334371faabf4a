package models

import (
	"time"
)

// Method identifies which acquisition path produced a transcript.
type Method string

const (
	MethodCaptions Method = "captions"
	MethodFastSTT  Method = "fast-stt"
	MethodLocalSTT Method = "local-stt"
)

// Word carries a word-level offset inside a segment, in milliseconds.
type Word struct {
	Text    string `json:"text"`
	StartMs int64  `json:"startMs"`
}

// TranscriptSegment is one span of transcribed speech. Duration may be
// zero when the source does not report it.
type TranscriptSegment struct {
	Text     string  `json:"text"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
	Words    []Word  `json:"words,omitempty"`
}

// End returns the segment's end offset in seconds.
func (s TranscriptSegment) End() float64 {
	return s.Offset + s.Duration
}

// CacheEntry is the cached form of a finalized transcript. Entries are
// replaced wholesale on re-acquisition, never mutated.
type CacheEntry struct {
	VideoID   string              `json:"video_id"`
	Segments  []TranscriptSegment `json:"segments"`
	Method    Method              `json:"method"`
	CreatedAt time.Time           `json:"created_at"`
}

// IsExpired reports whether the entry is older than the given TTL.
func (e *CacheEntry) IsExpired(ttl time.Duration) bool {
	return time.Since(e.CreatedAt) > ttl
}

// DurationSeconds returns the end offset of the last segment, which is
// the closest available figure for total transcript coverage.
func (e *CacheEntry) DurationSeconds() float64 {
	if len(e.Segments) == 0 {
		return 0
	}
	last := e.Segments[len(e.Segments)-1]
	return last.End()
}
