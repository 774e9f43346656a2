package models

// Slot is a bare (day, time) pair used for set arithmetic over the weekly grid.
type Slot struct {
	Day  string `db:"day" json:"day"`
	Time string `db:"time" json:"time"`
}

// OccupiedSlot is a Slot booked for a specific student through one of their subjects.
type OccupiedSlot struct {
	StudentID string `db:"student_id"`
	Day       string `db:"day"`
	Time      string `db:"time"`
}
