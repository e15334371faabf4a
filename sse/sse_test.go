package sse

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/services/transcript"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "sse")
}

func TestNewWriterHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	_, err := NewWriter(rec, testLogger())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if ab := rec.Header().Get("X-Accel-Buffering"); ab != "no" {
		t.Errorf("X-Accel-Buffering = %q", ab)
	}
}

func TestStreamWritesFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	events := make(chan transcript.Event, 8)
	feed := func(ev transcript.Event) { events <- ev }

	feed(transcript.Event{Type: transcript.EventStatus, Status: &models.StatusEvent{Phase: "extracting", Message: "Checking for captions"}})
	feed(transcript.Event{Type: transcript.EventMethod, Method: &models.MethodEvent{Method: models.MethodCaptions}})
	feed(transcript.Event{Type: transcript.EventSegments, Segments: []models.TranscriptSegment{
		{Text: "hello there", Offset: 0, Duration: 1.5},
		{Text: "general greeting", Offset: 1.5, Duration: 2},
	}})
	feed(transcript.Event{Type: transcript.EventDone, Done: &models.DoneEvent{Total: 2, Method: models.MethodCaptions, DurationSeconds: 3.5}})
	close(events)

	if err := sw.Stream(context.Background(), events, time.Minute); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	body := rec.Body.String()
	wantInOrder := []string{
		"event: status\ndata: {\"phase\":\"extracting\"",
		"event: method\ndata: {\"method\":\"captions\"}",
		"event: segment\ndata: {\"text\":\"hello there\",\"offset\":0,\"duration\":1.5}",
		"event: segment\ndata: {\"text\":\"general greeting\"",
		"event: done\ndata: {\"total\":2,\"method\":\"captions\",\"durationSeconds\":3.5}",
	}

	pos := 0
	for _, want := range wantInOrder {
		idx := strings.Index(body[pos:], want)
		if idx < 0 {
			t.Fatalf("frame %q missing or out of order in body:\n%s", want, body)
		}
		pos += idx + len(want)
	}
}

func TestStreamErrorFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	events := make(chan transcript.Event, 1)
	events <- transcript.Event{Type: transcript.EventError, Error: &models.ErrorEvent{Message: "failed to download audio"}}
	close(events)

	if err := sw.Stream(context.Background(), events, time.Minute); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if !strings.Contains(rec.Body.String(), "event: error\ndata: {\"message\":\"failed to download audio\"}") {
		t.Errorf("error frame missing from body:\n%s", rec.Body.String())
	}
}

func TestStreamStopsOnDisconnect(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	events := make(chan transcript.Event)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sw.Stream(ctx, events, time.Minute); err == nil {
		t.Error("expected context error after disconnect")
	}
}

func TestStreamKeepalive(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	events := make(chan transcript.Event)
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	_ = sw.Stream(ctx, events, 20*time.Millisecond)

	if !strings.Contains(rec.Body.String(), ": keepalive") {
		t.Errorf("keepalive comment missing from body:\n%s", rec.Body.String())
	}
}
