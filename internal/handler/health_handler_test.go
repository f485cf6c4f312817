package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(_ context.Context) error { return f.err }

type fakeChecker struct {
	healthy bool
}

func (f fakeChecker) IsHealthy() bool { return f.healthy }

func serveHealth(h *HealthHandler, path string) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/health/live", h.LivenessProbe)
	router.GET("/health/ready", h.ReadinessProbe)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthHandler_LivenessProbe(t *testing.T) {
	h := NewHealthHandler(fakePinger{}, nil)

	w := serveHealth(h, "/health/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UP")
}

func TestHealthHandler_ReadinessProbe(t *testing.T) {
	t.Run("ready when database is up", func(t *testing.T) {
		h := NewHealthHandler(fakePinger{}, nil)

		w := serveHealth(h, "/health/ready")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "healthy")
	})

	t.Run("not ready when database is down", func(t *testing.T) {
		h := NewHealthHandler(fakePinger{err: errors.New("connection refused")}, nil)

		w := serveHealth(h, "/health/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "unhealthy")
	})

	t.Run("not ready when broker is down", func(t *testing.T) {
		h := NewHealthHandler(fakePinger{}, fakeChecker{healthy: false})

		w := serveHealth(h, "/health/ready")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "rabbitmq")
	})

	t.Run("ready with healthy broker", func(t *testing.T) {
		h := NewHealthHandler(fakePinger{}, fakeChecker{healthy: true})

		w := serveHealth(h, "/health/ready")

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
