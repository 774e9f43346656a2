package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	"github.com/noah-isme/interview-rescheduler/internal/mailbox"
	"github.com/noah-isme/interview-rescheduler/internal/models"
	"github.com/noah-isme/interview-rescheduler/pkg/jobs"
)

type mailboxFetcher interface {
	FetchUnseen(ctx context.Context, student models.Student) []mailbox.Message
}

type interviewExtractor interface {
	Extract(ctx context.Context, text string) models.ExtractedInterview
}

// Config holds the two independent concurrency knobs.
type Config struct {
	BatchSize   int
	MaxSessions int
}

// Report summarises one run.
type Report struct {
	Payload      dto.DeliveryPayload
	Students     int
	Messages     int
	Extracted    int
	PeakSessions int
}

// Pipeline fetches and extracts interviews for a student population.
type Pipeline struct {
	mail      mailboxFetcher
	extractor interviewExtractor
	gate      *jobs.Gate
	batchSize int
	logger    *zap.Logger
}

// New builds a Pipeline. The session gate lives as long as the Pipeline, so
// repeated runs share one ceiling.
func New(mail mailboxFetcher, extractor interviewExtractor, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 5
	}
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 10
	}
	return &Pipeline{
		mail:      mail,
		extractor: extractor,
		gate:      jobs.NewGate(cfg.MaxSessions),
		batchSize: cfg.BatchSize,
		logger:    logger,
	}
}

// Run processes students batch by batch and aggregates what was extracted. On
// cancellation it returns the report for the batches that finished.
func (p *Pipeline) Run(ctx context.Context, students []models.Student) (*Report, error) {
	results, err := jobs.RunBatches(ctx, jobs.BatchConfig{BatchSize: p.batchSize, Logger: p.logger}, students, p.processStudent)

	report := &Report{Students: len(students), PeakSessions: p.gate.Peak()}
	for _, r := range results {
		report.Messages += len(r.Interviews)
		report.Extracted += r.Priority
	}
	report.Payload = Aggregate(results)
	return report, err
}

func (p *Pipeline) processStudent(ctx context.Context, student models.Student) (TaskResult, error) {
	var messages []mailbox.Message
	err := p.gate.Do(ctx, func(ctx context.Context) error {
		messages = p.mail.FetchUnseen(ctx, student)
		return nil
	})
	if err != nil {
		return TaskResult{StudentID: student.ID}, err
	}

	interviews := make([]models.ExtractedInterview, 0, len(messages))
	for _, msg := range messages {
		interviews = append(interviews, p.extractor.Extract(ctx, msg.Body))
	}

	result := NewTaskResult(student.ID, interviews)
	if len(messages) > 0 {
		p.logger.Sugar().Infow("student processed",
			"student_id", student.ID,
			"messages", len(messages),
			"interviews", result.Priority,
		)
	}
	return result, nil
}
