package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/cache"
	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/services/audio"
	"github.com/nijaru/yt-scribe/services/stt"
	"github.com/nijaru/yt-scribe/services/transcript"
)

const testVideoID = "dQw4w9WgXcQ"

type stubCaptions struct {
	segs []models.TranscriptSegment
	err  error
}

func (s stubCaptions) Extract(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	return s.segs, s.err
}

type stubAudio struct{ err error }

func (s stubAudio) Download(ctx context.Context, videoID string) (*audio.AudioFile, error) {
	return nil, s.err
}

type stubSTT struct{}

func (s stubSTT) Transcribe(ctx context.Context, audioPath string, cb stt.Callback) ([]models.TranscriptSegment, models.Method, error) {
	return nil, "", errors.TranscriptionFailed("stub", nil, "all transcription backends failed")
}

func makeSegs(n int) []models.TranscriptSegment {
	segs := make([]models.TranscriptSegment, n)
	for i := range segs {
		segs[i] = models.TranscriptSegment{
			Text:     strings.Repeat("word ", i+1) + "spoken",
			Offset:   float64(i) * 2,
			Duration: 2,
		}
	}
	return segs
}

func newTestHandler(t *testing.T, captions transcript.CaptionExtractor, probes map[string]Prober) (*http.ServeMux, *cache.Cache) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		Version: "test",
		Cache:   config.CacheConfig{MemoryTTL: time.Hour, DurableTTL: time.Hour},
		Delivery: config.DeliveryConfig{
			BatchSize:         5,
			KeepAliveInterval: 30 * time.Second,
		},
	}

	c := cache.New(nil, cfg.Cache, log)
	svc := transcript.NewService(c, captions,
		stubAudio{err: errors.AudioUnavailable("stub", nil, "failed to download audio")},
		stubSTT{}, nil, cfg.Delivery, log)

	mux := http.NewServeMux()
	New(svc, c, probes, cfg, log).Register(mux)
	return mux, c
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func TestHealth(t *testing.T) {
	probes := map[string]Prober{
		"database": func(ctx context.Context) bool { return true },
		"whisper":  func(ctx context.Context) bool { return false },
	}
	mux, _ := newTestHandler(t, stubCaptions{segs: makeSegs(2)}, probes)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var body struct {
		Status     string            `json:"status"`
		Version    string            `json:"version"`
		Components map[string]string `json:"components"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Version != "test" {
		t.Errorf("body = %+v", body)
	}
	if body.Components["database"] != "up" {
		t.Errorf("database component = %q, want up", body.Components["database"])
	}
	if body.Components["whisper"] != "down" {
		t.Errorf("whisper component = %q, want down", body.Components["whisper"])
	}
}

func TestCreateTranscript(t *testing.T) {
	mux, _ := newTestHandler(t, stubCaptions{segs: makeSegs(3)}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts",
		strings.NewReader(`{"url": "https://www.youtube.com/watch?v=`+testVideoID+`"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp models.TranscriptResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.VideoID != testVideoID {
		t.Errorf("video_id = %q", resp.VideoID)
	}
	if resp.Method != models.MethodCaptions {
		t.Errorf("method = %v", resp.Method)
	}
	if len(resp.Segments) != 3 {
		t.Errorf("got %d segments, want 3", len(resp.Segments))
	}
	if resp.Cached {
		t.Error("fresh acquisition marked cached")
	}
}

func TestCreateTranscriptByVideoID(t *testing.T) {
	mux, _ := newTestHandler(t, stubCaptions{segs: makeSegs(1)}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts",
		strings.NewReader(`{"video_id": "`+testVideoID+`"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestCreateTranscriptInvalidBody(t *testing.T) {
	mux, _ := newTestHandler(t, stubCaptions{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	var body errorPayload
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != string(errors.CodeValidation) {
		t.Errorf("error code = %q, want VALIDATION_ERROR", body.Error.Code)
	}
}

func TestCreateTranscriptUnsupportedURL(t *testing.T) {
	mux, _ := newTestHandler(t, stubCaptions{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts",
		strings.NewReader(`{"url": "https://example.com/watch?v=dQw4w9WgXcQ"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateTranscriptPipelineFailure(t *testing.T) {
	captions := stubCaptions{err: errors.NoCaptions("stub", nil, "no captions available for this video")}
	mux, _ := newTestHandler(t, captions, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts",
		strings.NewReader(`{"video_id": "`+testVideoID+`"}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusBadGateway, rr.Body.String())
	}

	var body errorPayload
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != string(errors.CodeAudioUnavailable) {
		t.Errorf("error code = %q, want AUDIO_UNAVAILABLE", body.Error.Code)
	}
	if body.Error.Message != "failed to download audio" {
		t.Errorf("error message = %q", body.Error.Message)
	}
}

func TestGetTranscript(t *testing.T) {
	mux, c := newTestHandler(t, stubCaptions{}, nil)

	entry := &models.CacheEntry{
		VideoID:   testVideoID,
		Segments:  makeSegs(2),
		Method:    models.MethodLocalSTT,
		CreatedAt: time.Now(),
	}
	if err := c.Set(context.Background(), entry); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/transcripts/"+testVideoID, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp models.TranscriptResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Method != models.MethodLocalSTT {
		t.Errorf("method = %v", resp.Method)
	}
	if !resp.Cached {
		t.Error("cache read not marked cached")
	}
}

func TestGetTranscriptMiss(t *testing.T) {
	mux, _ := newTestHandler(t, stubCaptions{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/transcripts/"+testVideoID, nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	var body errorPayload
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != string(errors.CodeNotFound) {
		t.Errorf("error code = %q, want NOT_FOUND", body.Error.Code)
	}
}

func TestStreamTranscript(t *testing.T) {
	mux, _ := newTestHandler(t, stubCaptions{segs: makeSegs(2)}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+testVideoID+"/stream", nil))

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rr.Body.String()
	for _, frame := range []string{"event: status", "event: method", "event: segment", "event: done"} {
		if !strings.Contains(body, frame) {
			t.Errorf("frame %q missing from stream:\n%s", frame, body)
		}
	}
	if strings.Contains(body, "event: error") {
		t.Errorf("unexpected error frame in stream:\n%s", body)
	}
}

func TestStreamTranscriptInvalidID(t *testing.T) {
	mux, _ := newTestHandler(t, stubCaptions{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/videos/@@@/stream", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
