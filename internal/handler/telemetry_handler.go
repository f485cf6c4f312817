package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/middleware"
	"github.com/SyedJoN/mytube-backend/internal/models"
	"github.com/SyedJoN/mytube-backend/internal/service"
	"github.com/SyedJoN/mytube-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TelemetryHandler handles telemetry ingestion HTTP requests.
type TelemetryHandler struct {
	telemetryService *service.TelemetryService
}

// NewTelemetryHandler creates a new TelemetryHandler instance.
func NewTelemetryHandler(telemetryService *service.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{
		telemetryService: telemetryService,
	}
}

// HandleBatch processes one batch of playback telemetry samples.
func (h *TelemetryHandler) HandleBatch(c *gin.Context) {
	var batch []models.TelemetryEventDTO

	if err := c.ShouldBindJSON(&batch); err != nil {
		logger.Log.Warn("Invalid telemetry payload",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:    http.StatusBadRequest,
			Error:     "Bad Request",
			Message:   "Telemetry payload must be a JSON array of events",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	userID := middleware.UserID(c)
	clientIP := h.getClientIP(c)

	logger.Log.Debug("Received telemetry batch",
		zap.Int("batchSize", len(batch)),
		zap.Bool("authenticated", userID != ""),
	)

	response, err := h.telemetryService.IngestBatch(c.Request.Context(), batch, userID, clientIP)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *TelemetryHandler) getClientIP(c *gin.Context) string {
	// Check X-Forwarded-For header
	xff := c.GetHeader("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	xri := c.GetHeader("X-Real-IP")
	if xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	return c.ClientIP()
}

func (h *TelemetryHandler) handleError(c *gin.Context, err error) {
	switch err.(type) {
	case *service.ValidationError:
		logger.Log.Warn("Validation error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:    http.StatusBadRequest,
			Error:     "Bad Request",
			Message:   err.Error(),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	case *service.ProcessingError:
		logger.Log.Error("Processing error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:    http.StatusInternalServerError,
			Error:     "Internal Server Error",
			Message:   "Failed to process telemetry batch",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	default:
		logger.Log.Error("Unexpected error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:    http.StatusInternalServerError,
			Error:     "Internal Server Error",
			Message:   "An unexpected error occurred",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
	}
}
