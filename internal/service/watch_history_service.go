package service

import (
	"context"

	"github.com/SyedJoN/mytube-backend/internal/db"
	"github.com/SyedJoN/mytube-backend/internal/db/repository"
	"github.com/SyedJoN/mytube-backend/internal/models"
)

// WatchHistoryService exposes the persisted resume positions of a user.
type WatchHistoryService struct {
	repo repository.WatchHistoryRepository
}

// NewWatchHistoryService creates a new WatchHistoryService instance.
func NewWatchHistoryService(repo repository.WatchHistoryRepository) *WatchHistoryService {
	return &WatchHistoryService{repo: repo}
}

// List returns one page of the user's watch history, newest first.
func (s *WatchHistoryService) List(ctx context.Context, userID string, page, limit int) (*models.WatchHistoryPageDTO, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	records, total, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, &ProcessingError{Message: "failed to list watch history", Cause: err}
	}

	items := make([]models.WatchHistoryItemDTO, 0, len(records))
	for _, rec := range records {
		items = append(items, toHistoryItem(rec))
	}

	totalPages := (total + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	return &models.WatchHistoryPageDTO{
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		Items:      items,
	}, nil
}

// Get returns the resume position for one video, or a NotFoundError when
// the user has never watched it.
func (s *WatchHistoryService) Get(ctx context.Context, userID, videoID string) (*models.WatchHistoryItemDTO, error) {
	rec, err := s.repo.GetRecord(ctx, userID, videoID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, &NotFoundError{Message: "no watch history for video"}
		}
		return nil, &ProcessingError{Message: "failed to get watch history", Cause: err}
	}

	item := toHistoryItem(rec)
	return &item, nil
}

func toHistoryItem(rec *models.WatchHistoryRecord) models.WatchHistoryItemDTO {
	return models.WatchHistoryItemDTO{
		VideoID:     rec.VideoID,
		CurrentTime: rec.CurrentTime,
		Duration:    rec.Duration,
		HasEnded:    rec.HasEnded,
		LastUpdated: rec.LastUpdated,
	}
}

// NotFoundError represents a request for a record that does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}
