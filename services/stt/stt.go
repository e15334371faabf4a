// Package stt turns downloaded audio into transcript segments. Two
// backends implement the same interface: a commercial HTTP API keyed
// by credential, and a local whisper sidecar.
package stt

import (
	"context"

	"github.com/nijaru/yt-scribe/models"
)

// Callback receives delivery hooks during transcription. Any field
// may be nil.
type Callback struct {
	// OnStart fires when a backend is selected, before any segments.
	OnStart func(method models.Method)
	// OnSegment fires once per finalized segment, in order.
	OnSegment func(segment models.TranscriptSegment)
	// OnProgress fires with a coarse 0-100 percentage.
	OnProgress func(percent int)
}

// Transcriber is one speech-to-text backend. Implementations must not
// invoke OnSegment unless the run as a whole succeeds, so a failed
// backend leaks no partial output into the stream.
type Transcriber interface {
	Name() models.Method
	Available(ctx context.Context) bool
	Transcribe(ctx context.Context, audioPath string, cb Callback) ([]models.TranscriptSegment, error)
}
