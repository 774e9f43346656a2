package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interview-rescheduler/internal/dto"
	"github.com/noah-isme/interview-rescheduler/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memoryStore implements every repository the services depend on. It ignores
// exec, so transactional behaviour is asserted through sqlmock instead.
type memoryStore struct {
	mu          sync.Mutex
	nextID      int64
	drives      []models.StudentCompanyDrive
	subjects    []string
	enrollments map[string][]string
	weekly      []models.Slot
	occupied    map[string][]models.Slot
	classes     []models.RescheduledClass
	assignments []models.RescheduledClassStudent
	attendance  []models.Attendance

	createDriveErr error
	createClassErr map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		enrollments:    map[string][]string{},
		occupied:       map[string][]models.Slot{},
		createClassErr: map[string]error{},
	}
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) Exists(ctx context.Context, exec sqlx.ExtContext, studentID, company string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drives {
		if d.StudentID == studentID && d.CompanyName == company && d.DriveDatetime.Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Create(ctx context.Context, exec sqlx.ExtContext, drive *models.StudentCompanyDrive) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createDriveErr != nil {
		return m.createDriveErr
	}
	drive.ID = m.id()
	m.drives = append(m.drives, *drive)
	return nil
}

func (m *memoryStore) ListIDs(ctx context.Context, exec sqlx.ExtContext) ([]string, error) {
	return append([]string(nil), m.subjects...), nil
}

func (m *memoryStore) ListEnrolledStudentIDs(ctx context.Context, exec sqlx.ExtContext, subjectID string) ([]string, error) {
	return append([]string(nil), m.enrollments[subjectID]...), nil
}

func (m *memoryStore) ListWeekly(ctx context.Context, exec sqlx.ExtContext) ([]models.Slot, error) {
	return append([]models.Slot(nil), m.weekly...), nil
}

func (m *memoryStore) ListOccupied(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) (map[string][]models.Slot, error) {
	out := make(map[string][]models.Slot)
	for _, id := range studentIDs {
		if slots, ok := m.occupied[id]; ok {
			out[id] = slots
		}
	}
	return out, nil
}

func (m *memoryStore) CreateClass(ctx context.Context, exec sqlx.ExtContext, class *models.RescheduledClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createClassErr[class.SubjectID]; err != nil {
		return err
	}
	class.ID = m.id()
	m.classes = append(m.classes, *class)
	return nil
}

func (m *memoryStore) AddStudent(ctx context.Context, exec sqlx.ExtContext, assignment models.RescheduledClassStudent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, c := range m.classes {
		if c.ID == assignment.RescheduleID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("reschedule %d does not exist", assignment.RescheduleID)
	}
	m.assignments = append(m.assignments, assignment)
	return nil
}

func (m *memoryStore) CreateAttendance(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attendance.ID = m.id()
	m.attendance = append(m.attendance, *attendance)
	return nil
}

func (m *memoryStore) writes() int {
	return len(m.classes) + len(m.assignments) + len(m.attendance)
}

type lockStub struct {
	mu       sync.Mutex
	busyFor  int
	attempts int
	released []string
	err      error
}

func (l *lockStub) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	if l.err != nil {
		return "", l.err
	}
	if l.attempts <= l.busyFor {
		return "", nil
	}
	return fmt.Sprintf("token-%d", l.attempts), nil
}

func (l *lockStub) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, token)
	return nil
}

type recorderStub struct {
	outcomes []string
	last     dto.IngestionSummary
}

func (r *recorderStub) ObserveDelivery(outcome string, summary dto.IngestionSummary) {
	r.outcomes = append(r.outcomes, outcome)
	r.last = summary
}
