package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/db"
	"github.com/SyedJoN/mytube-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertOp is one idempotent resume-position write, keyed by
// (user, video). Safe to retry: an op whose UpdatedAt is older than the
// stored record is a no-op.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type UpsertOp struct {
	UserID      string
	VideoID     string
	CurrentTime float64
	Duration    float64
	HasEnded    bool
	UpdatedAt   time.Time
}

// WatchHistoryRepository manages persisted resume positions.
type WatchHistoryRepository interface {
	// GetRecord retrieves the record for a (user, video) pair.
	// Returns db.ErrNotFound when no record exists.
	GetRecord(ctx context.Context, userID, videoID string) (*models.WatchHistoryRecord, error)

	// BulkUpsert applies ops unordered and partial-failure tolerant: one
	// pair's failure does not block the others. Returns how many ops
	// changed a row (stale ops count as applied no-ops, not failures).
	BulkUpsert(ctx context.Context, ops []UpsertOp) (int, error)

	// ListByUser returns the user's history sorted by last_updated
	// descending, plus the total record count for pagination.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.WatchHistoryRecord, int, error)
}

type watchHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewWatchHistoryRepository creates a new WatchHistoryRepository.
func NewWatchHistoryRepository(pool *pgxpool.Pool) WatchHistoryRepository {
	return &watchHistoryRepository{pool: pool}
}

func (r *watchHistoryRepository) GetRecord(ctx context.Context, userID, videoID string) (*models.WatchHistoryRecord, error) {
	query := `
		SELECT id, user_id, video_id, current_time_seconds, duration_seconds,
		       has_ended, last_updated, created_at
		FROM watch_history
		WHERE user_id = $1 AND video_id = $2
	`

	rec := &models.WatchHistoryRecord{}
	err := r.pool.QueryRow(ctx, query, userID, videoID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.VideoID,
		&rec.CurrentTime,
		&rec.Duration,
		&rec.HasEnded,
		&rec.LastUpdated,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, db.WrapError(err, "get watch history record")
	}

	return rec, nil
}

func (r *watchHistoryRepository) BulkUpsert(ctx context.Context, ops []UpsertOp) (int, error) {
	// The guard makes retries idempotent: replayed ops carry timestamps at
	// or before the stored last_updated and cannot move the record back.
	query := `
		INSERT INTO watch_history (user_id, video_id, current_time_seconds, duration_seconds, has_ended, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, video_id)
		DO UPDATE SET
			current_time_seconds = EXCLUDED.current_time_seconds,
			duration_seconds = EXCLUDED.duration_seconds,
			has_ended = EXCLUDED.has_ended,
			last_updated = EXCLUDED.last_updated
		WHERE watch_history.last_updated < EXCLUDED.last_updated
	`

	applied := 0
	var errs []error

	for _, op := range ops {
		_, err := r.pool.Exec(ctx, query,
			op.UserID,
			op.VideoID,
			op.CurrentTime,
			op.Duration,
			op.HasEnded,
			op.UpdatedAt,
		)
		if err != nil {
			errs = append(errs, db.WrapError(err, fmt.Sprintf("upsert watch history %s/%s", op.UserID, op.VideoID)))
			continue
		}
		applied++
	}

	return applied, errors.Join(errs...)
}

func (r *watchHistoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.WatchHistoryRecord, int, error) {
	query := `
		SELECT id, user_id, video_id, current_time_seconds, duration_seconds,
		       has_ended, last_updated, created_at
		FROM watch_history
		WHERE user_id = $1
		ORDER BY last_updated DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, db.WrapError(err, "list watch history")
	}
	defer rows.Close()

	var records []*models.WatchHistoryRecord
	for rows.Next() {
		rec := &models.WatchHistoryRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.VideoID,
			&rec.CurrentTime,
			&rec.Duration,
			&rec.HasEnded,
			&rec.LastUpdated,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan watch history record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate watch history records: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM watch_history WHERE user_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, db.WrapError(err, "count watch history")
	}

	return records, total, nil
}
