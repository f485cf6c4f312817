package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/db"
	"github.com/SyedJoN/mytube-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TelemetryRepository manages the append-only telemetry event log.
// Rows are never updated; expiry is handled by the retention sweeper.
type TelemetryRepository interface {
	// AppendEvents inserts raw events best-effort: one row's failure does
	// not block the others. Returns the number of rows written and the
	// joined per-row errors, if any.
	AppendEvents(ctx context.Context, events []*models.TelemetryEvent) (int, error)

	// GetEventsByVideoID retrieves recent raw events for a video, newest first.
	GetEventsByVideoID(ctx context.Context, videoID string, limit int) ([]*models.TelemetryEvent, error)

	// DeleteOlderThan removes up to limit events created before the cutoff
	// and reports how many rows were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type telemetryRepository struct {
	pool *pgxpool.Pool
}

// NewTelemetryRepository creates a new TelemetryRepository.
func NewTelemetryRepository(pool *pgxpool.Pool) TelemetryRepository {
	return &telemetryRepository{pool: pool}
}

func (r *telemetryRepository) AppendEvents(ctx context.Context, events []*models.TelemetryEvent) (int, error) {
	query := `
		INSERT INTO telemetry_events (
			id, video_id, user_id, anon_id, session_id,
			current_time_seconds, duration_seconds, state,
			muted, fullscreen, autoplay, seeked, final,
			source, country, lact, occurred_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	inserted := 0
	var errs []error

	for _, ev := range events {
		_, err := r.pool.Exec(ctx, query,
			ev.ID,
			ev.VideoID,
			nullString(ev.UserID),
			nullString(ev.AnonID),
			nullString(ev.SessionID),
			ev.CurrentTime,
			ev.Duration,
			string(ev.State),
			ev.Muted,
			ev.Fullscreen,
			ev.Autoplay,
			ev.Seeked,
			ev.Final,
			nullString(ev.Source),
			nullString(ev.Country),
			ev.Lact,
			ev.OccurredAt,
			ev.CreatedAt,
		)
		if err != nil {
			errs = append(errs, db.WrapError(err, fmt.Sprintf("append event %s", ev.ID)))
			continue
		}
		inserted++
	}

	return inserted, errors.Join(errs...)
}

func (r *telemetryRepository) GetEventsByVideoID(ctx context.Context, videoID string, limit int) ([]*models.TelemetryEvent, error) {
	query := `
		SELECT id, video_id, user_id, anon_id, session_id,
		       current_time_seconds, duration_seconds, state,
		       muted, fullscreen, autoplay, seeked, final,
		       source, country, lact, occurred_at, created_at
		FROM telemetry_events
		WHERE video_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, videoID, limit)
	if err != nil {
		return nil, db.WrapError(err, "get events by video id")
	}
	defer rows.Close()

	return scanTelemetryEvents(rows)
}

func (r *telemetryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM telemetry_events
		WHERE id IN (
			SELECT id FROM telemetry_events
			WHERE created_at < $1
			LIMIT $2
		)
	`

	tag, err := r.pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, db.WrapError(err, "delete expired events")
	}

	return tag.RowsAffected(), nil
}

func scanTelemetryEvents(rows pgx.Rows) ([]*models.TelemetryEvent, error) {
	var events []*models.TelemetryEvent

	for rows.Next() {
		ev := &models.TelemetryEvent{}
		var userID, anonID, sessionID, source, country *string
		var state string

		err := rows.Scan(
			&ev.ID,
			&ev.VideoID,
			&userID,
			&anonID,
			&sessionID,
			&ev.CurrentTime,
			&ev.Duration,
			&state,
			&ev.Muted,
			&ev.Fullscreen,
			&ev.Autoplay,
			&ev.Seeked,
			&ev.Final,
			&source,
			&country,
			&ev.Lact,
			&ev.OccurredAt,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}

		ev.State = models.PlaybackState(state)
		ev.UserID = deref(userID)
		ev.AnonID = deref(anonID)
		ev.SessionID = deref(sessionID)
		ev.Source = deref(source)
		ev.Country = deref(country)

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry events: %w", err)
	}

	return events, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
