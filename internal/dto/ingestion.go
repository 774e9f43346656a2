package dto

// InterviewEntry is one interview delivered for a student. An empty or
// unparseable InterviewDatetime skips the entry instead of failing the delivery.
type InterviewEntry struct {
	CompanyName       string `json:"company_name" validate:"required"`
	InterviewDatetime string `json:"interview_datetime"`
}

// DeliveryPayload maps student id to that student's interviews. It is the body
// of POST /update.
type DeliveryPayload map[string][]InterviewEntry

// IngestionSummary reports what a delivery changed.
type IngestionSummary struct {
	DrivesInserted     int `json:"drives_inserted"`
	DrivesExisting     int `json:"drives_existing"`
	EntriesSkipped     int `json:"entries_skipped"`
	SubjectsProcessed  int `json:"subjects_processed"`
	ClassesRescheduled int `json:"classes_rescheduled"`
}
