// Package service provides business logic for telemetry ingestion and
// watch history.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/db"
	"github.com/SyedJoN/mytube-backend/internal/db/repository"
	"github.com/SyedJoN/mytube-backend/internal/geo"
	"github.com/SyedJoN/mytube-backend/internal/metrics"
	"github.com/SyedJoN/mytube-backend/internal/models"
	"github.com/SyedJoN/mytube-backend/internal/reconciler"
	"github.com/SyedJoN/mytube-backend/internal/validation"
	"github.com/SyedJoN/mytube-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchPublisher fans accepted batches out to downstream consumers.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, batchID uuid.UUID, events []*models.TelemetryEvent) error
	IsHealthy() bool
}

// TelemetryService handles ingestion of playback telemetry batches.
type TelemetryService struct {
	telemetryRepo repository.TelemetryRepository
	historyRepo   repository.WatchHistoryRepository
	reconciler    *reconciler.Reconciler
	validator     *validation.Validator
	publisher     BatchPublisher // nil when fan-out is disabled
	geo           geo.Resolver
}

// NewTelemetryService creates a new TelemetryService instance.
func NewTelemetryService(
	telemetryRepo repository.TelemetryRepository,
	historyRepo repository.WatchHistoryRepository,
	rec *reconciler.Reconciler,
	validator *validation.Validator,
	publisher BatchPublisher,
	resolver geo.Resolver,
) *TelemetryService {
	if resolver == nil {
		resolver = geo.NoopResolver{}
	}
	return &TelemetryService{
		telemetryRepo: telemetryRepo,
		historyRepo:   historyRepo,
		reconciler:    rec,
		validator:     validator,
		publisher:     publisher,
		geo:           resolver,
	}
}

// NewHistoryBaselines wraps the watch history repository as the baseline
// source for reconciliation. A missing record maps to an absent baseline,
// not an error.
func NewHistoryBaselines(repo repository.WatchHistoryRepository) reconciler.BaselineSource {
	return historyBaselines{repo: repo}
}

type historyBaselines struct {
	repo repository.WatchHistoryRepository
}

func (h historyBaselines) LastRecorded(ctx context.Context, userID, videoID string) (reconciler.Baseline, error) {
	rec, err := h.repo.GetRecord(ctx, userID, videoID)
	if err != nil {
		if db.IsNotFound(err) {
			return reconciler.Baseline{}, nil
		}
		return reconciler.Baseline{}, err
	}
	return reconciler.Baseline{
		CurrentTime: rec.CurrentTime,
		HasEnded:    rec.HasEnded,
		Exists:      true,
	}, nil
}

// IngestBatch processes one telemetry batch through the full pipeline:
// validate, normalize, reconcile, persist, fan out. userID comes from the
// verified access token and overrides any identity claimed in the payload.
func (ts *TelemetryService) IngestBatch(ctx context.Context, batch []models.TelemetryEventDTO, userID, clientIP string) (*models.TelemetryResponseDTO, error) {
	start := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	// Step 1: Validate batch-level constraints
	if err := ts.validator.ValidateBatch(batch); err != nil {
		logger.Log.Warn("Telemetry batch validation failed",
			zap.Error(err),
			zap.Int("batchSize", len(batch)),
		)
		return nil, &ValidationError{Message: err.Error()}
	}

	// Step 2: Resolve the client country once per batch, best-effort
	country := ts.resolveCountry(ctx, clientIP)

	// Step 3: Normalize samples; malformed ones are skipped, not fatal
	events := ts.normalizeBatch(batch, userID, country)
	if len(events) == 0 {
		return nil, &ValidationError{Message: "no valid events in batch"}
	}
	metrics.EventsReceivedTotal.Add(float64(len(events)))

	// Step 4: Reconcile into resume-position write intents
	outcome, err := ts.reconciler.ReconcileBatch(ctx, events)
	if err != nil {
		return nil, &ProcessingError{Message: "failed to reconcile batch", Cause: err}
	}
	for i := 0; i < outcome.Skipped; i++ {
		metrics.IncSkipped("suppressed")
	}

	// Step 5: Persist the raw log and the resume positions concurrently;
	// the two writes are independent.
	var (
		wg        sync.WaitGroup
		inserted  int
		appendErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		inserted, appendErr = ts.telemetryRepo.AppendEvents(ctx, events)
	}()

	if len(outcome.Upserts) > 0 {
		ops := make([]repository.UpsertOp, 0, len(outcome.Upserts))
		for _, up := range outcome.Upserts {
			ops = append(ops, repository.UpsertOp{
				UserID:      up.UserID,
				VideoID:     up.VideoID,
				CurrentTime: up.CurrentTime,
				Duration:    up.Duration,
				HasEnded:    up.HasEnded,
				UpdatedAt:   up.UpdatedAt,
			})
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			// Resume positions are advisory; a failed upsert only costs the
			// user a resume point, the raw log still has the events.
			if _, err := ts.historyRepo.BulkUpsert(ctx, ops); err != nil {
				logger.Log.Error("Failed to upsert watch history",
					zap.Error(err),
					zap.Int("ops", len(ops)),
				)
			} else {
				metrics.UpsertsTotal.Add(float64(len(ops)))
			}
		}()
	}

	wg.Wait()

	if appendErr != nil {
		if inserted == 0 {
			logger.Log.Error("Failed to append telemetry events",
				zap.Error(appendErr),
				zap.Int("batchSize", len(events)),
			)
			return nil, &ProcessingError{Message: "failed to persist events", Cause: appendErr}
		}
		logger.Log.Warn("Partial telemetry append",
			zap.Error(appendErr),
			zap.Int("inserted", inserted),
			zap.Int("batchSize", len(events)),
		)
	}

	// Step 6: Fan out to analytics, best-effort
	ts.publish(ctx, events)

	logger.Log.Info("Telemetry batch processed",
		zap.Int("received", len(batch)),
		zap.Int("inserted", inserted),
		zap.Int("upserts", len(outcome.Upserts)),
		zap.Int("skipped", outcome.Skipped),
	)

	resp := &models.TelemetryResponseDTO{InsertedCount: inserted}
	if len(outcome.GuestPositions) > 0 {
		resp.GuestTimestamps = outcome.GuestPositions
	}
	return resp, nil
}

// normalizeBatch converts raw DTOs into domain events, dropping malformed
// samples with a warning.
func (ts *TelemetryService) normalizeBatch(batch []models.TelemetryEventDTO, userID, country string) []*models.TelemetryEvent {
	now := time.Now().UTC()
	events := make([]*models.TelemetryEvent, 0, len(batch))

	for i := range batch {
		dto := &batch[i]
		if err := ts.validator.ValidateEvent(dto); err != nil {
			logger.Log.Warn("Skipping malformed telemetry event",
				zap.Error(err),
				zap.String("videoId", dto.VideoID),
			)
			metrics.IncSkipped("invalid")
			continue
		}

		occurredAt := now
		if dto.Timestamp != 0 {
			occurredAt = time.UnixMilli(dto.Timestamp).UTC()
		}

		ev := &models.TelemetryEvent{
			ID:          uuid.New(),
			VideoID:     dto.VideoID,
			UserID:      userID,
			AnonID:      dto.AnonID,
			SessionID:   dto.SessionID,
			CurrentTime: *dto.CurrentTime,
			Duration:    dto.Duration,
			State:       models.NormalizeState(dto.State),
			Muted:       dto.Muted,
			Fullscreen:  dto.Fullscreen,
			Autoplay:    dto.Autoplay,
			Seeked:      dto.Seeked != 0,
			Final:       dto.Final != 0,
			Source:      dto.Source,
			Country:     country,
			Lact:        dto.Lact,
			OccurredAt:  occurredAt,
			CreatedAt:   now,
		}
		events = append(events, ev)
	}

	return events
}

func (ts *TelemetryService) resolveCountry(ctx context.Context, clientIP string) string {
	if clientIP == "" {
		return ""
	}
	country, err := ts.geo.Resolve(ctx, clientIP)
	if err != nil {
		logger.Log.Debug("Geo lookup failed",
			zap.Error(err),
			zap.String("ip", clientIP),
		)
		return ""
	}
	return country
}

func (ts *TelemetryService) publish(ctx context.Context, events []*models.TelemetryEvent) {
	if ts.publisher == nil {
		return
	}

	batchID := uuid.New()
	if err := ts.publisher.PublishBatch(ctx, batchID, events); err != nil {
		logger.Log.Error("Failed to publish telemetry batch to RabbitMQ",
			zap.Error(err),
			zap.String("batchId", batchID.String()),
		)
	}
}

// Custom errors

// ValidationError represents a telemetry payload validation error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ProcessingError represents an error that occurred during batch processing.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ProcessingError struct {
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}
