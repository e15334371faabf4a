package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.webm")
	if err := os.WriteFile(path, []byte("fake audio bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const verboseJSON = `{
	"text": "hello world and then some",
	"duration": 5.0,
	"segments": [
		{"start": 0.0, "end": 2.0, "text": " hello world"},
		{"start": 2.0, "end": 5.0, "text": "and then some "}
	],
	"words": [
		{"word": "hello", "start": 0.0},
		{"word": "world", "start": 0.9},
		{"word": "and", "start": 2.1},
		{"word": "then", "start": 3.0},
		{"word": "some", "start": 4.2}
	]
}`

func TestFastTranscribe(t *testing.T) {
	var gotAuth, gotModel, gotFormat, gotGranularity, gotFilename string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		gotGranularity = r.FormValue("timestamp_granularities[]")

		_, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, verboseJSON)
	}))
	defer srv.Close()

	cfg := config.STTConfig{
		APIKey:  "sk-test",
		APIURL:  srv.URL,
		Model:   "whisper-1",
		Timeout: 10 * time.Second,
	}
	tr := NewFastTranscriber(cfg, testLogger())

	var streamed []models.TranscriptSegment
	cb := Callback{OnSegment: func(seg models.TranscriptSegment) {
		streamed = append(streamed, seg)
	}}

	segments, err := tr.Transcribe(context.Background(), writeTestAudio(t), cb)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model field = %q", gotModel)
	}
	if gotFormat != "verbose_json" {
		t.Errorf("response_format field = %q", gotFormat)
	}
	if gotGranularity != "word" {
		t.Errorf("timestamp_granularities field = %q", gotGranularity)
	}
	if gotFilename != "audio.webm" {
		t.Errorf("uploaded filename = %q", gotFilename)
	}

	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != "hello world" {
		t.Errorf("segment 0 text = %q", segments[0].Text)
	}
	if segments[0].Offset != 0 || segments[0].Duration != 2.0 {
		t.Errorf("segment 0 timing = %v/%v", segments[0].Offset, segments[0].Duration)
	}
	if segments[1].Text != "and then some" {
		t.Errorf("segment 1 text = %q", segments[1].Text)
	}

	if len(segments[0].Words) != 2 {
		t.Fatalf("segment 0 has %d words, want 2", len(segments[0].Words))
	}
	if segments[0].Words[1].Text != "world" || segments[0].Words[1].StartMs != 900 {
		t.Errorf("segment 0 word 1 = %+v", segments[0].Words[1])
	}
	if len(segments[1].Words) != 3 {
		t.Fatalf("segment 1 has %d words, want 3", len(segments[1].Words))
	}
	if segments[1].Words[0].Text != "and" || segments[1].Words[0].StartMs != 2100 {
		t.Errorf("segment 1 word 0 = %+v", segments[1].Words[0])
	}

	if len(streamed) != 2 {
		t.Fatalf("callback saw %d segments, want 2", len(streamed))
	}
	if streamed[0].Text != segments[0].Text || streamed[1].Text != segments[1].Text {
		t.Error("callback segments do not match returned segments")
	}
}

func TestFastTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": {"message": "rate limit exceeded"}}`)
	}))
	defer srv.Close()

	cfg := config.STTConfig{
		APIKey:  "sk-test",
		APIURL:  srv.URL,
		Model:   "whisper-1",
		Timeout: 10 * time.Second,
	}
	tr := NewFastTranscriber(cfg, testLogger())

	var streamed int
	cb := Callback{OnSegment: func(models.TranscriptSegment) { streamed++ }}

	_, err := tr.Transcribe(context.Background(), writeTestAudio(t), cb)
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	if !errors.IsCode(err, errors.CodeTranscriptionFailed) {
		t.Errorf("error code = %v, want TRANSCRIPTION_FAILED", errors.GetCode(err))
	}
	if streamed != 0 {
		t.Errorf("callback fired %d times on failure, want 0", streamed)
	}
}

func TestFastTranscribeMissingFile(t *testing.T) {
	cfg := config.STTConfig{APIKey: "sk-test", APIURL: "http://127.0.0.1:0", Timeout: time.Second}
	tr := NewFastTranscriber(cfg, testLogger())

	_, err := tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.webm"), Callback{})
	if err == nil {
		t.Fatal("expected error for missing audio file")
	}
	if !errors.IsCode(err, errors.CodeTranscriptionFailed) {
		t.Errorf("error code = %v, want TRANSCRIPTION_FAILED", errors.GetCode(err))
	}
}

func TestFastAvailable(t *testing.T) {
	ctx := context.Background()

	withKey := NewFastTranscriber(config.STTConfig{APIKey: "sk-test"}, testLogger())
	if !withKey.Available(ctx) {
		t.Error("Available = false with API key configured")
	}

	withoutKey := NewFastTranscriber(config.STTConfig{}, testLogger())
	if withoutKey.Available(ctx) {
		t.Error("Available = true without API key")
	}
}
