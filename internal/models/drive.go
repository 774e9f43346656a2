package models

import "time"

// DriveStage is the recruitment stage a drive row tracks.
type DriveStage string

const (
	DriveStageOA        DriveStage = "OA"
	DriveStageInterview DriveStage = "Interview"
)

// ProgressStatus is shared by drives and reschedules: rows are created pending
// and completed by an external signal.
type ProgressStatus string

const (
	StatusPending ProgressStatus = "pending"
	StatusDone    ProgressStatus = "done"
)

// StudentCompanyDrive records one company interview for a student. At most one
// row exists per (student, company, datetime).
type StudentCompanyDrive struct {
	ID            int64          `db:"record_id" json:"record_id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	CompanyName   string         `db:"company_name" json:"company_name"`
	DriveStage    DriveStage     `db:"drive_stage" json:"drive_stage"`
	DriveDatetime time.Time      `db:"drive_datetime" json:"drive_datetime"`
	Status        ProgressStatus `db:"status" json:"status"`
}
