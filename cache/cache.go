package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/repository"
)

// Cache is the two tier transcript cache. The memory tier answers hot
// lookups, the durable tier survives restarts. A nil store degrades to
// memory only operation, which keeps the pipeline usable when the
// database cannot be opened.
type Cache struct {
	store      repository.TranscriptStore
	memoryTTL  time.Duration
	durableTTL time.Duration
	log        *logrus.Entry

	mu      sync.RWMutex
	entries map[string]*models.CacheEntry
}

func New(store repository.TranscriptStore, cfg config.CacheConfig, log *logrus.Logger) *Cache {
	return &Cache{
		store:      store,
		memoryTTL:  cfg.MemoryTTL,
		durableTTL: cfg.DurableTTL,
		log:        log.WithField("component", "cache"),
		entries:    make(map[string]*models.CacheEntry),
	}
}

// Get returns the cached transcript for videoID. Expired entries count
// as misses and are dropped on read. A durable tier hit is promoted
// into the memory tier. Storage failures degrade to a miss.
func (c *Cache) Get(ctx context.Context, videoID string) (*models.CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[videoID]
	c.mu.RUnlock()

	if ok {
		if !entry.IsExpired(c.memoryTTL) {
			return entry, true
		}
		c.mu.Lock()
		if cur, ok := c.entries[videoID]; ok && cur.IsExpired(c.memoryTTL) {
			delete(c.entries, videoID)
		}
		c.mu.Unlock()
	}

	if c.store == nil {
		return nil, false
	}

	entry, err := c.store.Get(ctx, videoID)
	if err != nil {
		if !errors.IsNotFound(err) {
			c.log.WithError(err).WithField("video_id", videoID).
				Warn("Durable cache read failed, treating as miss")
		}
		return nil, false
	}

	if entry.IsExpired(c.durableTTL) {
		if err := c.store.Delete(ctx, videoID); err != nil {
			c.log.WithError(err).WithField("video_id", videoID).
				Warn("Failed to drop expired cache entry")
		}
		return nil, false
	}

	c.mu.Lock()
	c.entries[videoID] = entry
	c.mu.Unlock()
	return entry, true
}

// Set stores entry in both tiers. The memory write always succeeds; a
// durable tier failure is returned so the caller can log it without
// failing the request.
func (c *Cache) Set(ctx context.Context, entry *models.CacheEntry) error {
	const op = "Cache.Set"

	c.mu.Lock()
	c.entries[entry.VideoID] = entry
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Save(ctx, entry); err != nil {
		return errors.CacheUnavailable(op, err, "failed to persist transcript")
	}
	return nil
}

// Delete drops videoID from both tiers.
func (c *Cache) Delete(ctx context.Context, videoID string) error {
	const op = "Cache.Delete"

	c.mu.Lock()
	delete(c.entries, videoID)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Delete(ctx, videoID); err != nil {
		return errors.CacheUnavailable(op, err, "failed to delete transcript")
	}
	return nil
}

// PurgeExpired sweeps both tiers and reports how many entries were
// removed. Meant to run on a timer; reads stay correct without it
// because Get drops expired entries lazily.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	var removed int64

	c.mu.Lock()
	for id, entry := range c.entries {
		if entry.IsExpired(c.memoryTTL) {
			delete(c.entries, id)
			removed++
		}
	}
	c.mu.Unlock()

	if c.store == nil {
		return removed, nil
	}

	n, err := c.store.PurgeExpired(ctx, time.Now().Add(-c.durableTTL))
	if err != nil {
		return removed, err
	}
	return removed + n, nil
}
