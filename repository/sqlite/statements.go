package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nijaru/yt-scribe/errors"
)

const (
	upsertTranscriptQuery = `
        INSERT INTO transcripts (
            video_id, segments, method, created_at
        ) VALUES (?, ?, ?, ?)
        ON CONFLICT(video_id) DO UPDATE SET
            segments = excluded.segments,
            method = excluded.method,
            created_at = excluded.created_at
    `

	getTranscriptQuery = `
        SELECT video_id, segments, method, created_at
        FROM transcripts WHERE video_id = ?
    `

	deleteTranscriptQuery = `
        DELETE FROM transcripts WHERE video_id = ?
    `

	purgeExpiredQuery = `
        DELETE FROM transcripts WHERE created_at < ?
    `
)

type PreparedStatements struct {
	upsert *sql.Stmt
	get    *sql.Stmt
	delete *sql.Stmt
	purge  *sql.Stmt
}

func (stmts *PreparedStatements) Prepare(ctx context.Context, db *sql.DB) error {
	const op = "PreparedStatements.Prepare"

	var err error

	if stmts.upsert, err = db.PrepareContext(ctx, upsertTranscriptQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare upsert statement")
	}

	if stmts.get, err = db.PrepareContext(ctx, getTranscriptQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare get statement")
	}

	if stmts.delete, err = db.PrepareContext(ctx, deleteTranscriptQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare delete statement")
	}

	if stmts.purge, err = db.PrepareContext(ctx, purgeExpiredQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare purge statement")
	}

	return nil
}

func (stmts *PreparedStatements) Close() error {
	var errs []error

	statements := [...]*sql.Stmt{
		stmts.upsert,
		stmts.get,
		stmts.delete,
		stmts.purge,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
