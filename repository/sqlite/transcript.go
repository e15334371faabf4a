package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
)

// Repository persists finalized transcripts. Segments are stored as a
// JSON column; the table is keyed by video ID with last write winning.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, entry *models.CacheEntry) error {
	const op = "SQLiteRepository.Save"

	segments, err := json.Marshal(entry.Segments)
	if err != nil {
		return errors.Internal(op, err, "failed to encode segments")
	}

	err = withLockRetry(ctx, r.db.config, op, func() error {
		_, execErr := r.db.statements.upsert.ExecContext(ctx,
			entry.VideoID,
			string(segments),
			string(entry.Method),
			entry.CreatedAt.UTC(),
		)
		return execErr
	})
	if err != nil {
		return errors.Internal(op, err, "failed to save transcript")
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, videoID string) (*models.CacheEntry, error) {
	const op = "SQLiteRepository.Get"

	var (
		entry    models.CacheEntry
		segments string
		method   string
	)

	err := r.db.statements.get.QueryRowContext(ctx, videoID).Scan(
		&entry.VideoID,
		&segments,
		&method,
		&entry.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "transcript not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "failed to query transcript")
	}

	if err := json.Unmarshal([]byte(segments), &entry.Segments); err != nil {
		return nil, errors.Internal(op, err, "failed to decode segments")
	}
	entry.Method = models.Method(method)
	return &entry, nil
}

func (r *Repository) Delete(ctx context.Context, videoID string) error {
	const op = "SQLiteRepository.Delete"

	err := withLockRetry(ctx, r.db.config, op, func() error {
		_, execErr := r.db.statements.delete.ExecContext(ctx, videoID)
		return execErr
	})
	if err != nil {
		return errors.Internal(op, err, "failed to delete transcript")
	}
	return nil
}

// PurgeExpired removes entries written before cutoff and reports how
// many rows were deleted.
func (r *Repository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "SQLiteRepository.PurgeExpired"

	res, err := r.db.statements.purge.ExecContext(ctx, cutoff.UTC())
	if err != nil {
		return 0, errors.Internal(op, err, "failed to purge expired transcripts")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Internal(op, err, "failed to count purged rows")
	}
	return n, nil
}
