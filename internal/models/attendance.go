package models

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Attendance is one attendance row. ScheduleID is nil for rescheduled sessions,
// which have no regular subject_schedule row.
type Attendance struct {
	ID         int64            `db:"attendance_id" json:"attendance_id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ScheduleID *int64           `db:"schedule_id" json:"schedule_id,omitempty"`
	Status     AttendanceStatus `db:"status" json:"status"`
}
