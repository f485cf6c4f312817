package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/db"
	"github.com/SyedJoN/mytube-backend/internal/db/repository"
	"github.com/SyedJoN/mytube-backend/internal/models"
	"github.com/SyedJoN/mytube-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedHistoryRepo supports listing for the watch history handler tests.
type pagedHistoryRepo struct {
	records []*models.WatchHistoryRecord
}

func (p *pagedHistoryRepo) GetRecord(_ context.Context, userID, videoID string) (*models.WatchHistoryRecord, error) {
	for _, rec := range p.records {
		if rec.UserID == userID && rec.VideoID == videoID {
			return rec, nil
		}
	}
	return nil, db.ErrNotFound
}

func (p *pagedHistoryRepo) BulkUpsert(_ context.Context, _ []repository.UpsertOp) (int, error) {
	return 0, nil
}

func (p *pagedHistoryRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]*models.WatchHistoryRecord, int, error) {
	var matched []*models.WatchHistoryRecord
	for _, rec := range p.records {
		if rec.UserID == userID {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastUpdated.After(matched[j].LastUpdated)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func newHistoryRouter(repo *pagedHistoryRepo, userID string) *gin.Engine {
	h := NewWatchHistoryHandler(service.NewWatchHistoryService(repo))

	router := gin.New()
	group := router.Group("/api/v1/watch-history", asUser(userID))
	group.GET("", h.List)
	group.GET("/:videoId", h.Get)
	return router
}

func TestWatchHistoryHandler_List(t *testing.T) {
	now := time.Now().UTC()
	repo := &pagedHistoryRepo{
		records: []*models.WatchHistoryRecord{
			{UserID: "u1", VideoID: "v1", CurrentTime: 10, Duration: 120, LastUpdated: now.Add(-time.Hour)},
			{UserID: "u1", VideoID: "v2", CurrentTime: 20, Duration: 90, LastUpdated: now},
		},
	}
	router := newHistoryRouter(repo, "u1")

	t.Run("lists history newest first", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/watch-history", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var page models.WatchHistoryPageDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 2, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "v2", page.Items[0].VideoID)
	})

	t.Run("honors paging parameters", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/watch-history?page=2&limit=1", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var page models.WatchHistoryPageDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "v1", page.Items[0].VideoID)
	})
}

func TestWatchHistoryHandler_Get(t *testing.T) {
	repo := &pagedHistoryRepo{
		records: []*models.WatchHistoryRecord{
			{UserID: "u1", VideoID: "v1", CurrentTime: 42, Duration: 120},
		},
	}
	router := newHistoryRouter(repo, "u1")

	t.Run("returns the resume position", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/watch-history/v1", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var item models.WatchHistoryItemDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
		assert.Equal(t, "v1", item.VideoID)
		assert.Equal(t, 42.0, item.CurrentTime)
	})

	t.Run("returns 404 for an unwatched video", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/watch-history/unknown", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
