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

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
)

// FastTranscriber calls a hosted transcription API speaking the
// audio/transcriptions multipart protocol with verbose_json output.
type FastTranscriber struct {
	cfg    config.STTConfig
	client *http.Client
	log    *logrus.Entry
}

func NewFastTranscriber(cfg config.STTConfig, log *logrus.Logger) *FastTranscriber {
	return &FastTranscriber{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.WithField("component", "stt.fast"),
	}
}

func (t *FastTranscriber) Name() models.Method { return models.MethodFastSTT }

// Available reports whether an API key is configured. Absence means
// skip, not error.
func (t *FastTranscriber) Available(ctx context.Context) bool {
	return t.cfg.APIKey != ""
}

func (t *FastTranscriber) Transcribe(ctx context.Context, audioPath string, cb Callback) ([]models.TranscriptSegment, error) {
	const op = "FastTranscriber.Transcribe"

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to open audio file")
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"model":                     t.cfg.Model,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "word",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, errors.TranscriptionFailed(op, err, "failed to build request body")
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to build request body")
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to read audio file")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to build request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.APIURL, &body)
	if err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	t.log.WithField("audio", audioPath).Info("Sending audio to transcription API")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.TranscriptionFailed(op, err, "transcription request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, errors.TranscriptionFailed(op, nil,
			fmt.Sprintf("transcription API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, errors.TranscriptionFailed(op, err, "failed to decode transcription response")
	}

	segments := vr.toSegments()
	if cb.OnSegment != nil {
		for _, seg := range segments {
			cb.OnSegment(seg)
		}
	}
	return segments, nil
}

type verboseResponse struct {
	Text     string           `json:"text"`
	Duration float64          `json:"duration"`
	Segments []verboseSegment `json:"segments"`
	Words    []verboseWord    `json:"words"`
}

type verboseSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type verboseWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
}

// toSegments converts the API payload. Word timings arrive as one
// flat list; both lists are time ordered, so each word lands in the
// segment whose span covers its start.
func (vr *verboseResponse) toSegments() []models.TranscriptSegment {
	segments := make([]models.TranscriptSegment, 0, len(vr.Segments))

	wi := 0
	for _, s := range vr.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}

		seg := models.TranscriptSegment{
			Text:     text,
			Offset:   s.Start,
			Duration: s.End - s.Start,
		}
		for wi < len(vr.Words) && vr.Words[wi].Start < s.End {
			w := vr.Words[wi]
			wi++
			word := strings.TrimSpace(w.Word)
			if word == "" {
				continue
			}
			seg.Words = append(seg.Words, models.Word{
				Text:    word,
				StartMs: int64(w.Start * 1000),
			})
		}
		segments = append(segments, seg)
	}
	return segments
}
