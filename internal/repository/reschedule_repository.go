package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/interview-rescheduler/internal/models"
)

// RescheduleRepository persists rescheduled classes, their students and the
// default attendance rows created with them.
type RescheduleRepository struct {
	db *sqlx.DB
}

// NewRescheduleRepository constructs repository.
func NewRescheduleRepository(db *sqlx.DB) *RescheduleRepository {
	return &RescheduleRepository{db: db}
}

// CreateClass inserts a rescheduled class and populates its generated id.
func (r *RescheduleRepository) CreateClass(ctx context.Context, exec sqlx.ExtContext, class *models.RescheduledClass) error {
	if class == nil {
		return fmt.Errorf("rescheduled class payload is nil")
	}
	if class.Status == "" {
		class.Status = models.StatusPending
	}
	const query = `INSERT INTO rescheduled_class (subject_id, day, time, status) VALUES ($1, $2, $3, $4) RETURNING reschedule_id`
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &class.ID, query, class.SubjectID, class.Day, class.Time, class.Status); err != nil {
		return fmt.Errorf("insert rescheduled class for %s: %w", class.SubjectID, err)
	}
	return nil
}

// AddStudent attaches a student to a rescheduled class.
func (r *RescheduleRepository) AddStudent(ctx context.Context, exec sqlx.ExtContext, assignment models.RescheduledClassStudent) error {
	if assignment.RescheduleID == 0 {
		return fmt.Errorf("reschedule_id is required")
	}
	if assignment.Status == "" {
		assignment.Status = models.StatusPending
	}
	const query = `INSERT INTO rescheduled_class_student (reschedule_id, student_id, status) VALUES ($1, $2, $3)`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, assignment.RescheduleID, assignment.StudentID, assignment.Status); err != nil {
		return fmt.Errorf("insert rescheduled class student %s: %w", assignment.StudentID, err)
	}
	return nil
}

// CreateAttendance inserts an attendance row and populates its generated id.
func (r *RescheduleRepository) CreateAttendance(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error {
	if attendance == nil {
		return fmt.Errorf("attendance payload is nil")
	}
	if attendance.Status == "" {
		attendance.Status = models.AttendanceAbsent
	}
	const query = `INSERT INTO attendance (student_id, schedule_id, status) VALUES ($1, $2, $3) RETURNING attendance_id`
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &attendance.ID, query, attendance.StudentID, attendance.ScheduleID, attendance.Status); err != nil {
		return fmt.Errorf("insert attendance for %s: %w", attendance.StudentID, err)
	}
	return nil
}
