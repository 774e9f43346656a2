package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/interview-rescheduler/internal/models"
)

// StudentRepository reads the student roster.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListMailboxes returns every student together with the mailbox credentials used for ingestion.
func (r *StudentRepository) ListMailboxes(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT student_id, email, password FROM students ORDER BY student_id`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list student mailboxes: %w", err)
	}
	return students, nil
}
