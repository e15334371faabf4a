package models

// TranscriptRequest is the incoming acquisition request. Either a full
// video URL or a bare video ID may be supplied.
type TranscriptRequest struct {
	URL     string `json:"url,omitempty"`
	VideoID string `json:"video_id,omitempty"`
}

// TranscriptResponse is the synchronous API response.
type TranscriptResponse struct {
	VideoID         string              `json:"video_id"`
	Method          Method              `json:"method"`
	Segments        []TranscriptSegment `json:"segments"`
	DurationSeconds float64             `json:"duration_seconds"`
	Cached          bool                `json:"cached"`
}

// NewTranscriptResponse builds a response from a cache entry.
func NewTranscriptResponse(e *CacheEntry, cached bool) *TranscriptResponse {
	return &TranscriptResponse{
		VideoID:         e.VideoID,
		Method:          e.Method,
		Segments:        e.Segments,
		DurationSeconds: e.DurationSeconds(),
		Cached:          cached,
	}
}

// Event payloads for the delivery stream. Field names follow the wire
// format the client consumes.

type StatusEvent struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

type MethodEvent struct {
	Method Method `json:"method"`
}

type ProgressEvent struct {
	Percent int `json:"percent"`
}

type SegmentEvent struct {
	Text     string  `json:"text"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

type DoneEvent struct {
	Total           int     `json:"total"`
	Method          Method  `json:"method"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// NewSegmentEvent strips word detail for stream delivery.
func NewSegmentEvent(s TranscriptSegment) SegmentEvent {
	return SegmentEvent{
		Text:     s.Text,
		Offset:   s.Offset,
		Duration: s.Duration,
	}
}
