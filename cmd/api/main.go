package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/interview-rescheduler/api/swagger"
	"github.com/noah-isme/interview-rescheduler/internal/handler"
	"github.com/noah-isme/interview-rescheduler/internal/middleware"
	"github.com/noah-isme/interview-rescheduler/internal/repository"
	"github.com/noah-isme/interview-rescheduler/internal/service"
	"github.com/noah-isme/interview-rescheduler/pkg/cache"
	"github.com/noah-isme/interview-rescheduler/pkg/config"
	"github.com/noah-isme/interview-rescheduler/pkg/database"
	"github.com/noah-isme/interview-rescheduler/pkg/logger"
	reqidmiddleware "github.com/noah-isme/interview-rescheduler/pkg/middleware/requestid"
)

// @title Interview Rescheduler API
// @version 1.0.0
// @description Receives extracted interviews, records drives and reschedules classes
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis unavailable", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	if cfg.Rescheduling.SerializeDeliveries && redisClient == nil {
		logr.Sugar().Fatalw("RESCHEDULE_SERIALIZE_DELIVERIES requires REDIS_HOST")
	}

	metricsSvc := service.NewMetricsService()

	drives := repository.NewDriveRepository(db)
	subjects := repository.NewSubjectRepository(db)
	rescheduler := service.NewRescheduleService(
		subjects,
		repository.NewSlotRepository(db),
		repository.NewRescheduleRepository(db),
		logr,
	)

	ingestion := service.NewIngestionService(
		drives,
		subjects,
		rescheduler,
		db,
		repository.NewLockRepository(redisClient, logr),
		metricsSvc,
		validator.New(),
		logr,
		service.IngestionServiceConfig{
			SerializeDeliveries: cfg.Rescheduling.SerializeDeliveries,
			LockKey:             cfg.Rescheduling.LockKey,
			LockTTL:             cfg.Rescheduling.LockTTL,
			LockWait:            cfg.Rescheduling.LockWait,
		},
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.POST("/update", handler.NewIngestionHandler(ingestion).Update)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Warnw("graceful shutdown failed", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "serialize_deliveries", cfg.Rescheduling.SerializeDeliveries)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
