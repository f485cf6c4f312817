package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/middleware"
	"github.com/SyedJoN/mytube-backend/internal/models"
	"github.com/SyedJoN/mytube-backend/internal/service"
	"github.com/SyedJoN/mytube-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WatchHistoryHandler serves the authenticated user's resume positions.
type WatchHistoryHandler struct {
	historyService *service.WatchHistoryService
}

// NewWatchHistoryHandler creates a new WatchHistoryHandler instance.
func NewWatchHistoryHandler(historyService *service.WatchHistoryService) *WatchHistoryHandler {
	return &WatchHistoryHandler{
		historyService: historyService,
	}
}

// List returns one page of the user's watch history.
func (h *WatchHistoryHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.historyService.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get returns the resume position for a single video.
func (h *WatchHistoryHandler) Get(c *gin.Context) {
	userID := middleware.UserID(c)
	videoID := c.Param("videoId")

	item, err := h.historyService.Get(c.Request.Context(), userID, videoID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *WatchHistoryHandler) handleError(c *gin.Context, err error) {
	switch err.(type) {
	case *service.NotFoundError:
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:    http.StatusNotFound,
			Error:     "Not Found",
			Message:   err.Error(),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	default:
		logger.Log.Error("Watch history error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:    http.StatusInternalServerError,
			Error:     "Internal Server Error",
			Message:   "Failed to read watch history",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	}
}
