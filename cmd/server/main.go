// Package main provides the entry point for the grading-system server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-system/internal/academic"
	"github.com/opengrade/grading-system/internal/config"
	"github.com/opengrade/grading-system/internal/lock"
	"github.com/opengrade/grading-system/internal/lockapi"
	"github.com/opengrade/grading-system/internal/logging"
	"github.com/opengrade/grading-system/internal/metrics"
	"github.com/opengrade/grading-system/internal/middleware"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.LogPretty {
		logger = logging.NewPrettyLogger("grading-system", cfg.LogLevel)
	} else {
		logger = logging.NewLogger("grading-system", cfg.LogLevel)
	}

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create database pool")
		}
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to reach database")
		}
		defer pool.Close()
	}

	leaseStore := buildLeaseStore(ctx, cfg, pool, logger)

	var academicStore academic.Store
	if pool != nil {
		academicStore = academic.NewPostgresStore(pool)
	} else {
		logger.Warn().Msg("no DATABASE_URL set, using in-memory academic store")
		academicStore = academic.NewInMemoryStore()
	}

	lockSvc := lock.NewService(leaseStore, logger, lock.WithLeaseDuration(cfg.LeaseDuration))

	sweepJob := lock.NewSweepJob(lockSvc, cfg.SweepInterval, logger)
	sweepJob.Start()
	defer sweepJob.Stop()

	// Setup Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	router.Use(middleware.PayloadLimit(cfg.AdminMaxPayloadSize, logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	metrics.RegisterMetricsEndpoint(router)

	apiV1 := router.Group("/api/v1")

	lockHandler := lockapi.NewHandler(lockSvc, logger)
	lockHandler.RegisterRoutes(apiV1)

	admin := apiV1.Group("/admin")
	admin.Use(middleware.RequireIdentity())
	lockHandler.RegisterAdminRoutes(admin)

	academicHandler := academic.NewHandler(academicStore, lockSvc, logger)
	academicHandler.RegisterRoutes(apiV1)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("lockBackend", cfg.LockBackend).
			Dur("leaseDuration", cfg.LeaseDuration).
			Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited properly")
}

// buildLeaseStore selects the lease store backend from configuration.
func buildLeaseStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) lock.LeaseStore {
	switch cfg.LockBackend {
	case "postgres":
		if pool == nil {
			logger.Fatal().Msg("LOCK_BACKEND=postgres requires DATABASE_URL")
		}
		return lock.NewPostgresLeaseStore(pool)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := lock.NewRedisLeaseStore(client)
		if err := store.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to reach redis")
		}
		return store
	case "memory":
		logger.Warn().Msg("using in-memory lock store; locks do not survive restarts and do not span instances")
		return lock.NewMemoryLeaseStore()
	default:
		logger.Fatal().Str("backend", cfg.LockBackend).Msg("unknown lock backend")
		return nil
	}
}
