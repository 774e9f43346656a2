package models

// RescheduledClass is a replacement session chosen for a subject.
type RescheduledClass struct {
	ID        int64          `db:"reschedule_id" json:"reschedule_id"`
	SubjectID string         `db:"subject_id" json:"subject_id"`
	Day       string         `db:"day" json:"day"`
	Time      string         `db:"time" json:"time"`
	Status    ProgressStatus `db:"status" json:"status"`
}

// RescheduledClassStudent assigns an enrolled student to a RescheduledClass.
type RescheduledClassStudent struct {
	RescheduleID int64          `db:"reschedule_id" json:"reschedule_id"`
	StudentID    string         `db:"student_id" json:"student_id"`
	Status       ProgressStatus `db:"status" json:"status"`
}
