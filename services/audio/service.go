// Package audio fetches a video's audio track into a caller-owned
// temp file. yt-dlp is the primary transport; a direct stream URL
// scraped from the watch page is the fallback.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/validation"
	"github.com/nijaru/yt-scribe/youtube"
	"github.com/nijaru/yt-scribe/ytdlp"
)

// AudioFile is a downloaded audio artifact. The caller owns it and
// must call Release exactly when done; Release is safe to call more
// than once.
type AudioFile struct {
	Path string
	Size int64

	dir     string
	log     *logrus.Entry
	release sync.Once
}

// Release removes the temp directory holding the file. Only the first
// call does the removal.
func (f *AudioFile) Release() {
	f.release.Do(func() {
		if err := os.RemoveAll(f.dir); err != nil && f.log != nil {
			f.log.WithError(err).WithField("dir", f.dir).Warn("Failed to remove temp audio")
		}
	})
}

// NewFile adopts an audio artifact already on disk. Release removes
// dir and everything under it.
func NewFile(dir, path string, size int64, log *logrus.Entry) *AudioFile {
	return &AudioFile{Path: path, Size: size, dir: dir, log: log}
}

type Service struct {
	yt      *youtube.Client
	runner  *ytdlp.Runner
	cfg     config.AudioConfig
	tempDir string
	log     *logrus.Entry
}

// NewService builds the acquirer. runner may be nil when yt-dlp is not
// installed; only the direct stream transport is used then.
func NewService(yt *youtube.Client, runner *ytdlp.Runner, cfg config.AudioConfig, tempDir string, log *logrus.Logger) *Service {
	return &Service{
		yt:      yt,
		runner:  runner,
		cfg:     cfg,
		tempDir: tempDir,
		log:     log.WithField("component", "audio"),
	}
}

type transport struct {
	name string
	fn   func(ctx context.Context, videoID, dir string) (string, error)
}

func (s *Service) transports() []transport {
	return []transport{
		{"ytdlp", s.viaYTDLP},
		{"direct", s.viaDirectStream},
	}
}

// Download fetches the audio for videoID. Transports are tried in
// order; when all fail the last transport's error is surfaced inside
// an AUDIO_UNAVAILABLE error. Files under the configured minimum size
// count as failures.
func (s *Service) Download(ctx context.Context, videoID string) (*AudioFile, error) {
	const op = "AudioService.Download"

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	defer cancel()

	dir, err := os.MkdirTemp(s.tempDir, "audio-*")
	if err != nil {
		return nil, errors.Internal(op, err, "failed to create temp dir")
	}

	var lastErr error
	for _, tr := range s.transports() {
		if err := ctx.Err(); err != nil {
			os.RemoveAll(dir)
			return nil, errors.Internal(op, err, "context cancelled")
		}

		path, err := tr.fn(ctx, videoID, dir)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"video_id":  videoID,
				"transport": tr.name,
			}).Debug("Audio transport failed")
			lastErr = err
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			lastErr = err
			continue
		}
		if info.Size() < s.cfg.MinFileBytes {
			lastErr = fmt.Errorf("audio file too small: %d bytes", info.Size())
			os.Remove(path)
			continue
		}

		s.log.WithFields(logrus.Fields{
			"video_id":  videoID,
			"transport": tr.name,
			"size":      info.Size(),
		}).Info("Audio downloaded")
		return NewFile(dir, path, info.Size(), s.log), nil
	}

	os.RemoveAll(dir)
	return nil, errors.AudioUnavailable(op, lastErr, "failed to download audio")
}

func (s *Service) viaYTDLP(ctx context.Context, videoID, dir string) (string, error) {
	if s.runner == nil {
		return "", fmt.Errorf("yt-dlp unavailable")
	}
	return s.runner.DownloadAudio(ctx, validation.WatchURL(videoID), dir)
}

// viaDirectStream scrapes the watch page for an audio-only adaptive
// format with a direct URL and downloads it.
func (s *Service) viaDirectStream(ctx context.Context, videoID, dir string) (string, error) {
	pr, err := s.yt.WatchPagePlayer(ctx, videoID)
	if err != nil {
		return "", err
	}
	if err := pr.Playable(); err != nil {
		return "", err
	}

	formats := pr.AudioFormats()
	if len(formats) == 0 {
		return "", fmt.Errorf("no direct audio formats listed")
	}
	format := formats[0]

	path := filepath.Join(dir, "audio"+extensionFor(format.MimeType))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}

	_, err = s.yt.Download(ctx, format.URL, f)
	closeErr := f.Close()
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if closeErr != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close audio file: %w", closeErr)
	}
	return path, nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/webm"):
		return ".webm"
	case strings.HasPrefix(mimeType, "audio/mp4"):
		return ".m4a"
	default:
		return ".bin"
	}
}
