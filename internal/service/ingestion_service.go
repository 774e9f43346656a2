package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	"github.com/noah-isme/interview-rescheduler/internal/models"
	appErrors "github.com/noah-isme/interview-rescheduler/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type driveRepository interface {
	Exists(ctx context.Context, exec sqlx.ExtContext, studentID, company string, at time.Time) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, drive *models.StudentCompanyDrive) error
}

type subjectLister interface {
	ListIDs(ctx context.Context, exec sqlx.ExtContext) ([]string, error)
}

type subjectRescheduler interface {
	RescheduleSubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (*models.RescheduledClass, error)
}

type deliveryLocker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

type deliveryRecorder interface {
	ObserveDelivery(outcome string, summary dto.IngestionSummary)
}

// IngestionServiceConfig governs delivery serialization.
type IngestionServiceConfig struct {
	SerializeDeliveries bool
	LockKey             string
	LockTTL             time.Duration
	LockWait            time.Duration
	LockPollInterval    time.Duration
}

// IngestionService records delivered interviews as drives and reschedules every
// subject in the same transaction.
type IngestionService struct {
	drives      driveRepository
	subjects    subjectLister
	rescheduler subjectRescheduler
	tx          txProvider
	locker      deliveryLocker
	metrics     deliveryRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         IngestionServiceConfig
}

// NewIngestionService wires ingestion dependencies. locker and metrics may be nil.
func NewIngestionService(
	drives driveRepository,
	subjects subjectLister,
	rescheduler subjectRescheduler,
	tx txProvider,
	locker deliveryLocker,
	metrics deliveryRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg IngestionServiceConfig,
) *IngestionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "reschedule:delivery"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.LockPollInterval <= 0 {
		cfg.LockPollInterval = 200 * time.Millisecond
	}
	return &IngestionService{
		drives:      drives,
		subjects:    subjects,
		rescheduler: rescheduler,
		tx:          tx,
		locker:      locker,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// timestampLayouts are tried in order when parsing interview_datetime.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseInterviewTime parses an ISO-8601 style date or date-time.
func ParseInterviewTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// Ingest upserts the delivered interviews and reschedules all subjects. Nothing
// is committed unless every step succeeds.
func (s *IngestionService) Ingest(ctx context.Context, payload dto.DeliveryPayload) (*dto.IngestionSummary, error) {
	if err := s.validate(payload); err != nil {
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	if s.cfg.SerializeDeliveries && s.locker != nil {
		token, err := s.acquire(ctx)
		if err != nil {
			s.record("locked", dto.IngestionSummary{})
			return nil, err
		}
		defer func() {
			// release even when the request context is already gone
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.locker.Release(releaseCtx, s.cfg.LockKey, token); err != nil {
				s.logger.Sugar().Warnw("failed to release delivery lock", "error", err)
			}
		}()
	}

	summary, err := s.ingest(ctx, payload)
	if err != nil {
		s.logger.Sugar().Errorw("delivery rolled back", "error", err, "students", len(payload))
		s.record("rolled_back", dto.IngestionSummary{})
		return nil, err
	}

	s.logger.Sugar().Infow("delivery committed",
		"students", len(payload),
		"drives_inserted", summary.DrivesInserted,
		"drives_existing", summary.DrivesExisting,
		"entries_skipped", summary.EntriesSkipped,
		"classes_rescheduled", summary.ClassesRescheduled,
	)
	s.record("committed", *summary)
	return summary, nil
}

func (s *IngestionService) ingest(ctx context.Context, payload dto.DeliveryPayload) (summary *dto.IngestionSummary, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	summary = &dto.IngestionSummary{}
	for studentID, entries := range payload {
		for _, entry := range entries {
			at, parseErr := ParseInterviewTime(entry.InterviewDatetime)
			if parseErr != nil {
				s.logger.Sugar().Warnw("skipping interview with malformed timestamp",
					"student_id", studentID,
					"company_name", entry.CompanyName,
					"interview_datetime", entry.InterviewDatetime,
				)
				summary.EntriesSkipped++
				continue
			}

			exists, lookupErr := s.drives.Exists(ctx, tx, studentID, entry.CompanyName, at)
			if lookupErr != nil {
				err = appErrors.Wrap(lookupErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up drive")
				return nil, err
			}
			if exists {
				summary.DrivesExisting++
				continue
			}

			drive := &models.StudentCompanyDrive{
				StudentID:     studentID,
				CompanyName:   entry.CompanyName,
				DriveStage:    models.DriveStageInterview,
				DriveDatetime: at,
				Status:        models.StatusPending,
			}
			if createErr := s.drives.Create(ctx, tx, drive); createErr != nil {
				err = appErrors.Wrap(createErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert drive")
				return nil, err
			}
			summary.DrivesInserted++
		}
	}

	subjectIDs, listErr := s.subjects.ListIDs(ctx, tx)
	if listErr != nil {
		err = appErrors.Wrap(listErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
		return nil, err
	}
	for _, subjectID := range subjectIDs {
		class, rescheduleErr := s.rescheduler.RescheduleSubject(ctx, tx, subjectID)
		if rescheduleErr != nil {
			err = appErrors.Wrap(rescheduleErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule subject "+subjectID)
			return nil, err
		}
		summary.SubjectsProcessed++
		if class != nil {
			summary.ClassesRescheduled++
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit delivery")
		return nil, err
	}
	return summary, nil
}

func (s *IngestionService) validate(payload dto.DeliveryPayload) error {
	for studentID, entries := range payload {
		if strings.TrimSpace(studentID) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "student id must not be empty")
		}
		for _, entry := range entries {
			if err := s.validator.Struct(entry); err != nil {
				return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid interview for student "+studentID)
			}
		}
	}
	return nil
}

// acquire polls the delivery lock until it is taken or LockWait elapses.
func (s *IngestionService) acquire(ctx context.Context) (string, error) {
	deadline := time.Now().Add(s.cfg.LockWait)
	for {
		token, err := s.locker.TryAcquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire delivery lock")
		}
		if token != "" {
			return token, nil
		}
		if !time.Now().Before(deadline) {
			return "", appErrors.Clone(appErrors.ErrDeliveryLocked, "")
		}
		select {
		case <-ctx.Done():
			return "", appErrors.Wrap(ctx.Err(), appErrors.ErrDeliveryLocked.Code, appErrors.ErrDeliveryLocked.Status, appErrors.ErrDeliveryLocked.Message)
		case <-time.After(s.cfg.LockPollInterval):
		}
	}
}

func (s *IngestionService) record(outcome string, summary dto.IngestionSummary) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDelivery(outcome, summary)
}
