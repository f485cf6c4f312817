package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/SyedJoN/mytube-backend/internal/config"
	"github.com/SyedJoN/mytube-backend/internal/db"
	"github.com/SyedJoN/mytube-backend/internal/db/repository"
	"github.com/SyedJoN/mytube-backend/internal/geo"
	"github.com/SyedJoN/mytube-backend/internal/handler"
	"github.com/SyedJoN/mytube-backend/internal/middleware"
	"github.com/SyedJoN/mytube-backend/internal/reconciler"
	"github.com/SyedJoN/mytube-backend/internal/service"
	"github.com/SyedJoN/mytube-backend/internal/session"
	"github.com/SyedJoN/mytube-backend/internal/validation"
	"github.com/SyedJoN/mytube-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Log.Info("Starting telemetry server",
		zap.Int("port", cfg.Server.Port),
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, &db.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConnections),
		MinConns:        int32(cfg.Database.MinConnections),
		MaxConnLifetime: cfg.Database.MaxLifetime,
		MaxConnIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close(pool)

	logger.Log.Info("Database connection established",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	telemetryRepo := repository.NewTelemetryRepository(pool)
	historyRepo := repository.NewWatchHistoryRepository(pool)

	// Pending-seek state lives in Redis when configured, so corroboration
	// works across instances; otherwise a per-process store suffices.
	var seeks session.Store
	if cfg.Redis.URL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.Redis.URL, cfg.Telemetry.PendingSeekTTL)
		if err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		seeks = redisStore
		logger.Log.Info("Using Redis session store")
	} else {
		seeks = session.NewMemoryStore(cfg.Telemetry.PendingSeekTTL)
		logger.Log.Info("Using in-memory session store")
	}
	defer seeks.Close()

	var publisher *service.MessagePublisher
	if cfg.RabbitMQ.Enabled {
		publisher, err = service.NewMessagePublisher(&cfg.RabbitMQ)
		if err != nil {
			logger.Log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
	} else {
		logger.Log.Info("RabbitMQ fan-out disabled")
	}

	var resolver geo.Resolver = geo.NoopResolver{}
	if cfg.Geo.Enabled {
		resolver = geo.NewClient(geo.Config{
			BaseURL: cfg.Geo.BaseURL,
			Timeout: cfg.Geo.Timeout,
		})
		logger.Log.Info("Geo resolution enabled", zap.String("baseUrl", cfg.Geo.BaseURL))
	}

	rec := reconciler.New(reconciler.Config{
		EndWindow:    cfg.Telemetry.EndWindowSeconds,
		GapThreshold: cfg.Telemetry.GapSeconds,
		ColdStart:    cfg.Telemetry.ColdStartSeconds,
	}, service.NewHistoryBaselines(historyRepo), seeks, cfg.Telemetry.GuestPositionLimit)

	validator := validation.New(cfg.Telemetry.MaxBatchSize)

	// The publisher is optional; passing the concrete nil pointer through
	// an interface would make it non-nil, so branch explicitly.
	var batchPublisher service.BatchPublisher
	if publisher != nil {
		batchPublisher = publisher
	}

	telemetryService := service.NewTelemetryService(telemetryRepo, historyRepo, rec, validator, batchPublisher, resolver)
	historyService := service.NewWatchHistoryService(historyRepo)

	jwtVerifier := middleware.NewJWTVerifier(cfg.Auth.AccessTokenSecret, cfg.Auth.CookieName)

	telemetryHandler := handler.NewTelemetryHandler(telemetryService)
	historyHandler := handler.NewWatchHistoryHandler(historyService)

	var healthChecker handler.HealthChecker
	if publisher != nil {
		healthChecker = publisher
	}
	healthHandler := handler.NewHealthHandler(pool, healthChecker)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/telemetry", jwtVerifier.OptionalAuth(), telemetryHandler.HandleBatch)

		history := v1.Group("/watch-history", jwtVerifier.RequireAuth())
		{
			history.GET("", historyHandler.List)
			history.GET("/:videoId", historyHandler.Get)
		}
	}

	router.GET("/health/live", healthHandler.LivenessProbe)
	router.GET("/health/ready", healthHandler.ReadinessProbe)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("Server listening", zap.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Log.Fatal("Server error", zap.Error(err))
	case sig := <-shutdown:
		logger.Log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				logger.Log.Error("Failed to close server", zap.Error(err))
			}
		}

		logger.Log.Info("Server stopped")
	}
}
