package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/delivery"
	"github.com/noah-isme/interview-rescheduler/internal/extractor"
	"github.com/noah-isme/interview-rescheduler/internal/mailbox"
	"github.com/noah-isme/interview-rescheduler/internal/pipeline"
	"github.com/noah-isme/interview-rescheduler/internal/repository"
	"github.com/noah-isme/interview-rescheduler/pkg/config"
	"github.com/noah-isme/interview-rescheduler/pkg/database"
	"github.com/noah-isme/interview-rescheduler/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "ingestor")
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

	ic := cfg.Ingestion
	mail := mailbox.NewClient(mailbox.Config{
		Host:           ic.IMAPHost,
		Port:           ic.IMAPPort,
		TLS:            ic.IMAPTLS,
		Mailbox:        ic.Mailbox,
		MarkSeen:       ic.MarkSeen,
		SessionTimeout: ic.SessionTimeout,
	}, nil, mailbox.NewSeenCache(), logr.Named("mailbox"))

	ex := extractor.New(extractor.Config{
		APIKey:              cfg.Extraction.APIKey,
		BaseURL:             cfg.Extraction.BaseURL,
		Model:               cfg.Extraction.Model,
		RequestTimeout:      cfg.Extraction.RequestTimeout,
		BreakerMaxFailures:  cfg.Extraction.BreakerMaxFailures,
		BreakerOpenInterval: cfg.Extraction.BreakerOpenInterval,
	}, nil, logr.Named("extractor"))

	p := pipeline.New(mail, ex, pipeline.Config{
		BatchSize:   ic.BatchSize,
		MaxSessions: ic.MaxSessions,
	}, logr)

	runner := pipeline.NewRunner(
		repository.NewStudentRepository(db),
		p,
		delivery.New(ic.BackendURL, ic.DeliveryTimeout, logr.Named("delivery")),
		ic.RunTimeout,
		logr,
	)

	if ic.Schedule == "" {
		runAndLog(ctx, runner, logr)
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(logr)))))
	if _, err := c.AddFunc(ic.Schedule, func() { runAndLog(ctx, runner, logr) }); err != nil {
		logr.Sugar().Fatalw("invalid ingestion schedule", "schedule", ic.Schedule, "error", err)
	}
	logr.Sugar().Infow("ingestor scheduled", "schedule", ic.Schedule, "batch_size", ic.BatchSize, "max_sessions", ic.MaxSessions)
	c.Start()

	<-ctx.Done()
	logr.Sugar().Infow("ingestor stopping")
	<-c.Stop().Done()
}

func runAndLog(ctx context.Context, runner *pipeline.Runner, logr *zap.Logger) {
	err := runner.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrNoStudents):
		// already logged
	default:
		logr.Sugar().Errorw("ingestion run failed", "error", err)
	}
}
