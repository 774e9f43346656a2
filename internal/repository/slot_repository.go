package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/interview-rescheduler/internal/models"
)

// SlotRepository reads the weekly grid and the slots students already occupy.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository constructs repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// ListWeekly returns the universal weekly slot set.
func (r *SlotRepository) ListWeekly(ctx context.Context, exec sqlx.ExtContext) ([]models.Slot, error) {
	const query = `SELECT day, time FROM weekly_slot`
	var slots []models.Slot
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &slots, query); err != nil {
		return nil, fmt.Errorf("list weekly slots: %w", err)
	}
	return slots, nil
}

// ListOccupied returns, per student, the slots booked by the regular schedules of
// every subject the student is enrolled in. Students without bookings are absent
// from the map.
func (r *SlotRepository) ListOccupied(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) (map[string][]models.Slot, error) {
	result := make(map[string][]models.Slot, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	const query = `SELECT st.student_id, ss.day, ss.time
FROM subject_schedule ss
JOIN student_subject st ON st.subject_id = ss.subject_id
WHERE st.student_id = ANY($1)`
	var rows []models.OccupiedSlot
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &rows, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list occupied slots: %w", err)
	}
	for _, row := range rows {
		result[row.StudentID] = append(result[row.StudentID], models.Slot{Day: row.Day, Time: row.Time})
	}
	return result, nil
}
