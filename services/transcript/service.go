// Package transcript orchestrates transcript acquisition. A run walks
// cache lookup, caption extraction, audio download, and speech to
// text, and delivers the result as an ordered event stream.
package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/cache"
	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/segments"
	"github.com/nijaru/yt-scribe/services/audio"
	"github.com/nijaru/yt-scribe/services/stt"
	"github.com/nijaru/yt-scribe/validation"
)

// eventBuffer bounds the per run event channel. A slow consumer back
// pressures the pipeline instead of growing memory.
const eventBuffer = 16

// CaptionExtractor yields caption segments for a video.
type CaptionExtractor interface {
	Extract(ctx context.Context, videoID string) ([]models.TranscriptSegment, error)
}

// AudioDownloader fetches the audio track as a releasable temp file.
type AudioDownloader interface {
	Download(ctx context.Context, videoID string) (*audio.AudioFile, error)
}

// SpeechToText runs the transcription backend chain over an audio file.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath string, cb stt.Callback) ([]models.TranscriptSegment, models.Method, error)
}

// Archiver persists finished transcripts to long term storage.
type Archiver interface {
	Archive(ctx context.Context, entry *models.CacheEntry) error
}

type Service struct {
	cache    *cache.Cache
	captions CaptionExtractor
	audio    AudioDownloader
	stt      SpeechToText
	archiver Archiver
	cfg      config.DeliveryConfig
	log      *logrus.Entry

	locks sync.Map
}

// NewService wires the acquisition pipeline. archiver may be nil when
// object storage is not configured.
func NewService(c *cache.Cache, captions CaptionExtractor, audio AudioDownloader, chain SpeechToText, archiver Archiver, cfg config.DeliveryConfig, log *logrus.Logger) *Service {
	return &Service{
		cache:    c,
		captions: captions,
		audio:    audio,
		stt:      chain,
		archiver: archiver,
		cfg:      cfg,
		log:      log.WithField("component", "transcript"),
	}
}

// machine logs pipeline state changes and refuses to leave a terminal
// state.
type machine struct {
	state State
	log   *logrus.Entry
}

func (m *machine) to(next State) {
	if m.state.IsTerminal() {
		return
	}
	m.log.WithFields(logrus.Fields{
		"from": m.state.String(),
		"to":   next.String(),
	}).Debug("Acquisition state change")
	m.state = next
}

// Acquire validates videoID and starts an acquisition run. Validation
// failures return synchronously; everything else arrives as events.
// The channel is closed after the terminal event, or without one when
// ctx is cancelled.
func (s *Service) Acquire(ctx context.Context, videoID string) (<-chan Event, error) {
	if err := validation.ValidateVideoID(videoID); err != nil {
		return nil, err
	}

	events := make(chan Event, eventBuffer)
	go s.run(ctx, videoID, events)
	return events, nil
}

// AcquireSync runs an acquisition to completion and returns the
// assembled transcript. It drains the same event stream the SSE
// surface consumes.
func (s *Service) AcquireSync(ctx context.Context, videoID string) (*models.TranscriptResponse, error) {
	const op = "TranscriptService.AcquireSync"

	events, err := s.Acquire(ctx, videoID)
	if err != nil {
		return nil, err
	}

	resp := &models.TranscriptResponse{VideoID: videoID}
	for ev := range events {
		switch ev.Type {
		case EventMethod:
			resp.Method = ev.Method.Method
		case EventSegments:
			resp.Segments = append(resp.Segments, ev.Segments...)
		case EventDone:
			resp.Method = ev.Done.Method
			resp.DurationSeconds = ev.Done.DurationSeconds
			resp.Cached = ev.Cached
			return resp, nil
		case EventError:
			if ev.Err != nil {
				return nil, ev.Err
			}
			return nil, errors.Internal(op, nil, ev.Error.Message)
		}
	}
	return nil, errors.Internal(op, ctx.Err(), "acquisition interrupted")
}

func (s *Service) run(ctx context.Context, videoID string, events chan<- Event) {
	defer close(events)

	log := s.log.WithField("video_id", videoID)
	m := &machine{state: StateIdle, log: log}

	unlock, err := s.lockVideo(ctx, videoID)
	if err != nil {
		return
	}
	defer unlock()

	m.to(StateCheckingCache)
	if entry, ok := s.cache.Get(ctx, videoID); ok {
		log.WithField("method", entry.Method).Info("Cache hit")
		if s.emit(ctx, events, methodEvent(entry.Method)) && s.deliver(ctx, events, entry, true) {
			m.to(StateDone)
		}
		return
	}

	m.to(StateExtractingCaptions)
	if !s.emit(ctx, events, statusEvent(PhaseExtracting, "Checking for captions")) {
		return
	}
	capSegs, err := s.captions.Extract(ctx, videoID)
	if err == nil && len(capSegs) > 0 {
		entry := s.persist(ctx, log, videoID, capSegs, models.MethodCaptions)
		if s.emit(ctx, events, methodEvent(entry.Method)) &&
			s.emit(ctx, events, statusEvent(PhaseStreaming, "Streaming transcript")) &&
			s.deliver(ctx, events, entry, false) {
			m.to(StateDone)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	log.WithError(err).Info("No captions available, falling back to audio")

	m.to(StateDownloadingAudio)
	if !s.emit(ctx, events, statusEvent(PhaseDownloading, "Downloading audio")) {
		return
	}
	file, err := s.audio.Download(ctx, videoID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.to(StateFailed)
		s.fail(ctx, events, log, err)
		return
	}
	defer file.Release()

	m.to(StateTranscribing)
	if !s.emit(ctx, events, statusEvent(PhaseTranscribing, "Transcribing audio")) {
		return
	}
	cb := stt.Callback{
		OnStart:    func(method models.Method) { s.emit(ctx, events, methodEvent(method)) },
		OnProgress: func(percent int) { s.emit(ctx, events, progressEvent(percent)) },
	}
	sttSegs, method, err := s.stt.Transcribe(ctx, file.Path, cb)
	file.Release()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.to(StateFailed)
		s.fail(ctx, events, log, err)
		return
	}

	entry := s.persist(ctx, log, videoID, sttSegs, method)
	if s.emit(ctx, events, statusEvent(PhaseStreaming, "Streaming transcript")) &&
		s.deliver(ctx, events, entry, false) {
		m.to(StateDone)
	}
}

// lockVideo serializes concurrent acquisitions of the same video, so
// the second request waits and then sees the first one's cache write.
// Different videos run concurrently.
func (s *Service) lockVideo(ctx context.Context, videoID string) (func(), error) {
	lock, _ := s.locks.LoadOrStore(videoID, make(chan struct{}, 1))
	sem := lock.(chan struct{})

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// persist normalizes, caches, and optionally archives a fresh
// transcript. Cache and archive failures are logged, not returned;
// the transcript still flows to the client.
func (s *Service) persist(ctx context.Context, log *logrus.Entry, videoID string, segs []models.TranscriptSegment, method models.Method) *models.CacheEntry {
	entry := &models.CacheEntry{
		VideoID:   videoID,
		Segments:  segments.Normalize(segs),
		Method:    method,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, entry); err != nil {
		log.WithError(err).Warn("Transcript cached in memory only")
	}
	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, entry); err != nil {
			log.WithError(err).Warn("Failed to archive transcript")
		}
	}
	return entry
}

// deliver streams entry's segments in batches and finishes with done.
// Returns false when cancellation interrupts delivery.
func (s *Service) deliver(ctx context.Context, events chan<- Event, entry *models.CacheEntry, cached bool) bool {
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 1
	}

	for start := 0; start < len(entry.Segments); start += batch {
		end := start + batch
		if end > len(entry.Segments) {
			end = len(entry.Segments)
		}
		if !s.emit(ctx, events, segmentsEvent(entry.Segments[start:end])) {
			return false
		}
	}
	return s.emit(ctx, events, doneEvent(entry, cached))
}

func (s *Service) fail(ctx context.Context, events chan<- Event, log *logrus.Entry, err error) {
	log.WithError(err).Error("Acquisition failed")
	s.emit(ctx, events, errorEvent(err))
}

// emit delivers ev unless ctx is done first.
func (s *Service) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
