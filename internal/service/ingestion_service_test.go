package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	"github.com/noah-isme/interview-rescheduler/internal/models"
	"github.com/noah-isme/interview-rescheduler/internal/repository"
	appErrors "github.com/noah-isme/interview-rescheduler/pkg/errors"
)

type ingestionFixture struct {
	svc      *IngestionService
	store    *memoryStore
	mock     sqlmock.Sqlmock
	recorder *recorderStub
}

func newIngestionFixture(t *testing.T, locker deliveryLocker, cfg IngestionServiceConfig) ingestionFixture {
	tx, mock := newTxProviderMock(t)
	store := newMemoryStore()
	store.weekly = []models.Slot{{Day: "Mon", Time: "10:00"}, {Day: "Mon", Time: "11:00"}}
	rescheduler := NewRescheduleService(store, store, store, zap.NewNop())
	recorder := &recorderStub{}
	svc := NewIngestionService(store, store, rescheduler, tx, locker, recorder, validator.New(), zap.NewNop(), cfg)
	return ingestionFixture{svc: svc, store: store, mock: mock, recorder: recorder}
}

func acmePayload() dto.DeliveryPayload {
	return dto.DeliveryPayload{
		"S1": {{CompanyName: "Acme", InterviewDatetime: "2024-01-01T10:00:00"}},
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	f := newIngestionFixture(t, nil, IngestionServiceConfig{})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	first, err := f.svc.Ingest(context.Background(), acmePayload())
	require.NoError(t, err)
	assert.Equal(t, 1, first.DrivesInserted)

	second, err := f.svc.Ingest(context.Background(), acmePayload())
	require.NoError(t, err)
	assert.Equal(t, 0, second.DrivesInserted)
	assert.Equal(t, 1, second.DrivesExisting)

	require.Len(t, f.store.drives, 1)
	drive := f.store.drives[0]
	assert.Equal(t, "S1", drive.StudentID)
	assert.Equal(t, "Acme", drive.CompanyName)
	assert.Equal(t, models.DriveStageInterview, drive.DriveStage)
	assert.Equal(t, models.StatusPending, drive.Status)
	assert.True(t, drive.DriveDatetime.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIngestSkipsMalformedTimestamp(t *testing.T) {
	f := newIngestionFixture(t, nil, IngestionServiceConfig{})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	payload := dto.DeliveryPayload{
		"S1": {
			{CompanyName: "Broken", InterviewDatetime: "not-a-date"},
			{CompanyName: "Blank", InterviewDatetime: ""},
			{CompanyName: "Acme", InterviewDatetime: "2024-01-01T10:00:00"},
		},
		"S2": {{CompanyName: "Globex", InterviewDatetime: "2024-02-03 09:30"}},
	}

	summary, err := f.svc.Ingest(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EntriesSkipped)
	assert.Equal(t, 2, summary.DrivesInserted)
	assert.Len(t, f.store.drives, 2)
	assert.Equal(t, []string{"committed"}, f.recorder.outcomes)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIngestReschedulesEverySubject(t *testing.T) {
	f := newIngestionFixture(t, nil, IngestionServiceConfig{})
	f.store.subjects = []string{"CS101", "EMPTY", "MA201"}
	f.store.enrollments["CS101"] = []string{"A", "B"}
	f.store.enrollments["MA201"] = []string{"C"}
	f.store.occupied["A"] = []models.Slot{{Day: "Mon", Time: "10:00"}}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	summary, err := f.svc.Ingest(context.Background(), dto.DeliveryPayload{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.SubjectsProcessed)
	assert.Equal(t, 2, summary.ClassesRescheduled)
	assert.Len(t, f.store.assignments, 3)
	assert.Len(t, f.store.attendance, 3)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIngestRollsBackOnDriveFailure(t *testing.T) {
	f := newIngestionFixture(t, nil, IngestionServiceConfig{})
	f.store.createDriveErr = errors.New("disk full")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Ingest(context.Background(), acmePayload())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Equal(t, []string{"rolled_back"}, f.recorder.outcomes)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIngestRollsBackWhenLaterSubjectFails(t *testing.T) {
	f := newIngestionFixture(t, nil, IngestionServiceConfig{})
	f.store.subjects = []string{"CS101", "MA201"}
	f.store.enrollments["CS101"] = []string{"A"}
	f.store.enrollments["MA201"] = []string{"B"}
	f.store.createClassErr["MA201"] = errors.New("constraint violation")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Ingest(context.Background(), acmePayload())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Contains(t, err.Error(), "MA201")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIngestRejectsIncompleteEntry(t *testing.T) {
	f := newIngestionFixture(t, nil, IngestionServiceConfig{})

	_, err := f.svc.Ingest(context.Background(), dto.DeliveryPayload{
		"S1": {{CompanyName: "", InterviewDatetime: "2024-01-01T10:00:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.store.drives)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIngestSerializesWithLock(t *testing.T) {
	lock := &lockStub{busyFor: 2}
	f := newIngestionFixture(t, lock, IngestionServiceConfig{
		SerializeDeliveries: true,
		LockWait:            time.Second,
		LockPollInterval:    time.Millisecond,
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.Ingest(context.Background(), acmePayload())
	require.NoError(t, err)
	assert.Equal(t, 3, lock.attempts)
	assert.Equal(t, []string{"token-3"}, lock.released)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIngestLockContention(t *testing.T) {
	lock := &lockStub{busyFor: 1 << 20}
	f := newIngestionFixture(t, lock, IngestionServiceConfig{
		SerializeDeliveries: true,
		LockWait:            5 * time.Millisecond,
		LockPollInterval:    time.Millisecond,
	})

	_, err := f.svc.Ingest(context.Background(), acmePayload())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDeliveryLocked))
	assert.Empty(t, lock.released)
	assert.Empty(t, f.store.drives)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIngestWithRepositoriesInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	sqlxdb := sqlx.NewDb(db, "sqlmock")

	drives := repository.NewDriveRepository(sqlxdb)
	subjects := repository.NewSubjectRepository(sqlxdb)
	rescheduler := NewRescheduleService(subjects, repository.NewSlotRepository(sqlxdb), repository.NewRescheduleRepository(sqlxdb), zap.NewNop())
	svc := NewIngestionService(drives, subjects, rescheduler, sqlxdb, nil, nil, nil, zap.NewNop(), IngestionServiceConfig{})

	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM student_company_drive")).
		WithArgs("S1", "Acme", at).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO student_company_drive")).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT subject_id FROM subjects")).
		WillReturnRows(sqlmock.NewRows([]string{"subject_id"}).AddRow("CS101"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id FROM student_subject")).
		WithArgs("CS101").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("A").AddRow("B"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT day, time FROM weekly_slot")).
		WillReturnRows(sqlmock.NewRows([]string{"day", "time"}).
			AddRow("Mon", "10:00").AddRow("Mon", "11:00").AddRow("Tue", "10:00"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT st.student_id, ss.day, ss.time")).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "day", "time"}).
			AddRow("A", "Mon", "10:00").AddRow("B", "Tue", "10:00"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO rescheduled_class (subject_id")).
		WithArgs("CS101", "Mon", "11:00", string(models.StatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"reschedule_id"}).AddRow(7))
	for _, student := range []string{"A", "B"} {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rescheduled_class_student")).
			WithArgs(int64(7), student, string(models.StatusPending)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
			WithArgs(student, nil, string(models.AttendanceAbsent)).
			WillReturnRows(sqlmock.NewRows([]string{"attendance_id"}).AddRow(1))
	}
	mock.ExpectCommit()

	summary, err := svc.Ingest(context.Background(), acmePayload())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DrivesInserted)
	assert.Equal(t, 1, summary.ClassesRescheduled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseInterviewTime(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-01T10:00:00":       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		"2024-01-01 10:00:00":       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		"2024-01-01T10:00":          time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		"2024-01-01":                time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"2024-01-01T10:00:00Z":      time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		" 2024-01-01T10:00:00.5 ":   time.Date(2024, 1, 1, 10, 0, 0, 500000000, time.UTC),
		"2024-01-01T15:30:00+05:30": time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got, err := ParseInterviewTime(input)
		require.NoError(t, err, input)
		assert.True(t, want.Equal(got), "%s parsed as %s", input, got)
	}

	for _, bad := range []string{"not-a-date", "", "01/02/2024"} {
		_, err := ParseInterviewTime(bad)
		assert.Error(t, err, bad)
	}
}
