package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
)

const healthProbeTimeout = 5 * time.Second

// LocalTranscriber talks to the whisper sidecar over HTTP. The
// sidecar exposes GET /health and a multipart POST /transcribe.
type LocalTranscriber struct {
	cfg    config.STTConfig
	client *http.Client
	log    *logrus.Entry
}

func NewLocalTranscriber(cfg config.STTConfig, log *logrus.Logger) *LocalTranscriber {
	return &LocalTranscriber{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.WhisperTimeout},
		log:    log.WithField("component", "stt.local"),
	}
}

func (t *LocalTranscriber) Name() models.Method { return models.MethodLocalSTT }

// Available probes the sidecar health endpoint. A short timeout keeps
// an absent sidecar from stalling backend selection.
func (t *LocalTranscriber) Available(ctx context.Context) bool {
	if t.cfg.WhisperURL == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.WhisperURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		t.log.WithError(err).Debug("Whisper sidecar health check failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (t *LocalTranscriber) Transcribe(ctx context.Context, audioPath string, cb Callback) ([]models.TranscriptSegment, error) {
	const op = "LocalTranscriber.Transcribe"

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to open audio file")
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to build request body")
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to read audio file")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to build request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.WhisperURL+"/transcribe", &body)
	if err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	t.log.WithField("audio", audioPath).Info("Sending audio to whisper sidecar")

	if cb.OnProgress != nil {
		cb.OnProgress(0)
	}
	stop := t.startProgress(cb)

	resp, err := t.client.Do(req)
	if err != nil {
		stop()
		return nil, errors.TranscriptionFailed(op, err, "whisper sidecar request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		stop()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, errors.TranscriptionFailed(op, nil,
			fmt.Sprintf("whisper sidecar returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		stop()
		return nil, errors.TranscriptionFailed(op, err, "failed to decode whisper sidecar response")
	}
	if wr.Error != "" {
		stop()
		return nil, errors.TranscriptionFailed(op, nil, "whisper sidecar reported: "+wr.Error)
	}

	stop()
	if cb.OnProgress != nil {
		cb.OnProgress(100)
	}

	segments := wr.toSegments()
	if cb.OnSegment != nil {
		for _, seg := range segments {
			cb.OnSegment(seg)
		}
	}
	return segments, nil
}

// startProgress emits coarse progress while the sidecar works. The
// sidecar reports nothing until it finishes, so ticks climb at a slow
// fixed rate and park at 90 until the response lands. The returned
// stop waits for the goroutine to exit, so no tick can follow the
// final 100.
func (t *LocalTranscriber) startProgress(cb Callback) func() {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		if cb.OnProgress == nil {
			<-done
			return
		}

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		percent := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if percent < 90 {
					percent += 5
					cb.OnProgress(percent)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}

type whisperResponse struct {
	Segments []whisperSegment `json:"segments"`
	Duration float64          `json:"duration"`
	Error    string           `json:"error"`
}

type whisperSegment struct {
	Text     string        `json:"text"`
	Offset   float64       `json:"offset"`
	Duration float64       `json:"duration"`
	Words    []whisperWord `json:"words"`
}

type whisperWord struct {
	Text    string `json:"text"`
	StartMs int64  `json:"startMs"`
}

func (wr *whisperResponse) toSegments() []models.TranscriptSegment {
	segments := make([]models.TranscriptSegment, 0, len(wr.Segments))
	for _, s := range wr.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}

		seg := models.TranscriptSegment{
			Text:     text,
			Offset:   s.Offset,
			Duration: s.Duration,
		}
		for _, w := range s.Words {
			word := strings.TrimSpace(w.Text)
			if word == "" {
				continue
			}
			seg.Words = append(seg.Words, models.Word{Text: word, StartMs: w.StartMs})
		}
		segments = append(segments, seg)
	}
	return segments
}
