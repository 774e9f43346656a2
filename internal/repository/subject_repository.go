package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SubjectRepository reads subjects and their enrollment.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListIDs returns every subject id in a stable order.
func (r *SubjectRepository) ListIDs(ctx context.Context, exec sqlx.ExtContext) ([]string, error) {
	const query = `SELECT subject_id FROM subjects ORDER BY subject_id`
	var ids []string
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &ids, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return ids, nil
}

// ListEnrolledStudentIDs returns the students enrolled in subjectID.
func (r *SubjectRepository) ListEnrolledStudentIDs(ctx context.Context, exec sqlx.ExtContext, subjectID string) ([]string, error) {
	const query = `SELECT student_id FROM student_subject WHERE subject_id = $1 ORDER BY student_id`
	var ids []string
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &ids, query, subjectID); err != nil {
		return nil, fmt.Errorf("list students enrolled in %s: %w", subjectID, err)
	}
	return ids, nil
}
