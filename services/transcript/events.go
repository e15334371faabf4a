package transcript

import (
	stderrors "errors"

	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
)

// EventType discriminates the payload carried by an Event.
type EventType string

const (
	EventStatus   EventType = "status"
	EventMethod   EventType = "method"
	EventProgress EventType = "progress"
	EventSegments EventType = "segments"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Pipeline phases reported through status events.
const (
	PhaseExtracting   = "extracting"
	PhaseDownloading  = "downloading"
	PhaseTranscribing = "transcribing"
	PhaseStreaming    = "streaming"
)

// Event is one emission from an acquisition run. The payload field
// matching Type is set, the rest are nil. Err and Cached never reach
// the wire; they serve the synchronous acquisition path.
type Event struct {
	Type     EventType
	Status   *models.StatusEvent
	Method   *models.MethodEvent
	Progress *models.ProgressEvent
	Segments []models.TranscriptSegment
	Done     *models.DoneEvent
	Error    *models.ErrorEvent

	Err    error
	Cached bool
}

func statusEvent(phase, message string) Event {
	return Event{Type: EventStatus, Status: &models.StatusEvent{Phase: phase, Message: message}}
}

func methodEvent(m models.Method) Event {
	return Event{Type: EventMethod, Method: &models.MethodEvent{Method: m}}
}

func progressEvent(percent int) Event {
	return Event{Type: EventProgress, Progress: &models.ProgressEvent{Percent: percent}}
}

func segmentsEvent(batch []models.TranscriptSegment) Event {
	return Event{Type: EventSegments, Segments: batch}
}

func doneEvent(entry *models.CacheEntry, cached bool) Event {
	return Event{
		Type: EventDone,
		Done: &models.DoneEvent{
			Total:           len(entry.Segments),
			Method:          entry.Method,
			DurationSeconds: entry.DurationSeconds(),
		},
		Cached: cached,
	}
}

func errorEvent(err error) Event {
	return Event{
		Type:  EventError,
		Error: &models.ErrorEvent{Message: clientMessage(err)},
		Err:   err,
	}
}

// clientMessage picks the user facing text for an error event.
// AppError messages are written for clients; anything else gets a
// generic line.
func clientMessage(err error) string {
	var app *errors.AppError
	if stderrors.As(err, &app) {
		return app.Message
	}
	return "transcript acquisition failed"
}
