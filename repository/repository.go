package repository

import (
	"context"
	"time"

	"github.com/nijaru/yt-scribe/models"
)

// TranscriptStore is the durable tier behind the transcript cache.
type TranscriptStore interface {
	Get(ctx context.Context, videoID string) (*models.CacheEntry, error)
	Save(ctx context.Context, entry *models.CacheEntry) error
	Delete(ctx context.Context, videoID string) error
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
