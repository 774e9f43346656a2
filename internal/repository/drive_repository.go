package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/interview-rescheduler/internal/models"
)

// DriveRepository persists student company drives.
type DriveRepository struct {
	db *sqlx.DB
}

// NewDriveRepository constructs repository.
func NewDriveRepository(db *sqlx.DB) *DriveRepository {
	return &DriveRepository{db: db}
}

// Exists reports whether a drive row already exists for the (student, company, datetime) triple.
func (r *DriveRepository) Exists(ctx context.Context, exec sqlx.ExtContext, studentID, company string, at time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM student_company_drive WHERE student_id = $1 AND company_name = $2 AND drive_datetime = $3)`
	var exists bool
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &exists, query, studentID, company, at); err != nil {
		return false, fmt.Errorf("lookup drive for %s/%s: %w", studentID, company, err)
	}
	return exists, nil
}

// Create inserts a drive row and populates its generated id.
func (r *DriveRepository) Create(ctx context.Context, exec sqlx.ExtContext, drive *models.StudentCompanyDrive) error {
	if drive == nil {
		return fmt.Errorf("drive payload is nil")
	}
	if drive.DriveStage == "" {
		drive.DriveStage = models.DriveStageInterview
	}
	if drive.Status == "" {
		drive.Status = models.StatusPending
	}

	const query = `INSERT INTO student_company_drive (student_id, company_name, drive_stage, drive_datetime, status)
VALUES ($1, $2, $3, $4, $5) RETURNING record_id`
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &drive.ID, query,
		drive.StudentID, drive.CompanyName, drive.DriveStage, drive.DriveDatetime, drive.Status); err != nil {
		return fmt.Errorf("insert drive: %w", err)
	}
	return nil
}
