package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	"github.com/noah-isme/interview-rescheduler/internal/models"
	"github.com/noah-isme/interview-rescheduler/pkg/middleware/requestid"
)

type rosterSource interface {
	ListMailboxes(ctx context.Context) ([]models.Student, error)
}

type payloadSender interface {
	Send(ctx context.Context, payload dto.DeliveryPayload) error
}

// ErrNoStudents is returned when the roster is empty.
var ErrNoStudents = errors.New("no students to process")

// Runner performs one complete ingestion run: roster, pipeline, delivery.
type Runner struct {
	roster     rosterSource
	pipeline   *Pipeline
	sender     payloadSender
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewRunner wires a Runner. runTimeout bounds mailbox and extraction work; the
// delivery keeps its own timeout.
func NewRunner(roster rosterSource, pipeline *Pipeline, sender payloadSender, runTimeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{roster: roster, pipeline: pipeline, sender: sender, runTimeout: runTimeout, logger: logger}
}

// RunOnce executes a single run. A run that finds nothing never calls the
// backend. A run cut short by its deadline still delivers what it gathered.
func (r *Runner) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	log := r.logger.Sugar().With("run_id", runID)
	started := time.Now()

	students, err := r.roster.ListMailboxes(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if len(students) == 0 {
		log.Warnw("no students fetched")
		return ErrNoStudents
	}
	log.Infow("processing students", "students", len(students))

	runCtx := ctx
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	report, runErr := r.pipeline.Run(runCtx, students)
	if runErr != nil {
		log.Warnw("run interrupted", "error", runErr)
	}
	log.Infow("extraction finished",
		"messages", report.Messages,
		"interviews", report.Extracted,
		"students_with_interviews", len(report.Payload),
		"peak_sessions", report.PeakSessions,
		"elapsed", time.Since(started),
	)

	if len(report.Payload) == 0 {
		log.Infow("no interviews found to send")
		return runErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.sender.Send(requestid.WithValue(ctx, runID), report.Payload); err != nil {
		return fmt.Errorf("deliver run %s: %w", runID, err)
	}
	return runErr
}
