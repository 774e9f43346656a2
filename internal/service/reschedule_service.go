package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/models"
)

type enrollmentReader interface {
	ListEnrolledStudentIDs(ctx context.Context, exec sqlx.ExtContext, subjectID string) ([]string, error)
}

type slotReader interface {
	ListWeekly(ctx context.Context, exec sqlx.ExtContext) ([]models.Slot, error)
	ListOccupied(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) (map[string][]models.Slot, error)
}

type rescheduleWriter interface {
	CreateClass(ctx context.Context, exec sqlx.ExtContext, class *models.RescheduledClass) error
	AddStudent(ctx context.Context, exec sqlx.ExtContext, assignment models.RescheduledClassStudent) error
	CreateAttendance(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error
}

// RescheduleService moves a subject's class onto a slot where every enrolled
// student is free.
type RescheduleService struct {
	enrollments enrollmentReader
	slots       slotReader
	writer      rescheduleWriter
	logger      *zap.Logger
}

// NewRescheduleService wires rescheduling dependencies.
func NewRescheduleService(enrollments enrollmentReader, slots slotReader, writer rescheduleWriter, logger *zap.Logger) *RescheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescheduleService{enrollments: enrollments, slots: slots, writer: writer, logger: logger}
}

// RescheduleSubject picks the first common free slot for subjectID and records
// the rescheduled class, its students and their default attendance through exec.
// It returns nil without writing when the subject has no students or no common
// free slot. Callers own the transaction behind exec.
func (s *RescheduleService) RescheduleSubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (*models.RescheduledClass, error) {
	students, err := s.enrollments.ListEnrolledStudentIDs(ctx, exec, subjectID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		s.logger.Sugar().Debugw("subject has no enrolled students", "subject_id", subjectID)
		return nil, nil
	}

	universe, err := s.slots.ListWeekly(ctx, exec)
	if err != nil {
		return nil, err
	}
	occupied, err := s.slots.ListOccupied(ctx, exec, students)
	if err != nil {
		return nil, err
	}

	slot, ok := PickSlot(CommonFreeSlots(universe, occupied, students))
	if !ok {
		s.logger.Sugar().Infow("no common free slot", "subject_id", subjectID, "students", len(students))
		return nil, nil
	}

	class := &models.RescheduledClass{
		SubjectID: subjectID,
		Day:       slot.Day,
		Time:      slot.Time,
		Status:    models.StatusPending,
	}
	if err := s.writer.CreateClass(ctx, exec, class); err != nil {
		return nil, err
	}

	for _, studentID := range students {
		assignment := models.RescheduledClassStudent{
			RescheduleID: class.ID,
			StudentID:    studentID,
			Status:       models.StatusPending,
		}
		if err := s.writer.AddStudent(ctx, exec, assignment); err != nil {
			return nil, err
		}
		attendance := &models.Attendance{StudentID: studentID, Status: models.AttendanceAbsent}
		if err := s.writer.CreateAttendance(ctx, exec, attendance); err != nil {
			return nil, fmt.Errorf("default attendance for reschedule %d: %w", class.ID, err)
		}
	}

	s.logger.Sugar().Infow("subject rescheduled",
		"subject_id", subjectID,
		"reschedule_id", class.ID,
		"day", class.Day,
		"time", class.Time,
		"students", len(students),
	)
	return class, nil
}
