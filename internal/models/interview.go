package models

// ExtractedInterview is the parsed form of one notification email. A nil field
// marks an extraction failure; such records never leave the ingestor.
type ExtractedInterview struct {
	CompanyName       *string `json:"company_name"`
	InterviewDatetime *string `json:"interview_datetime"`
	RawText           string  `json:"raw_text,omitempty"`
}

// Complete reports whether both company and datetime were extracted.
func (e ExtractedInterview) Complete() bool {
	return e.CompanyName != nil && *e.CompanyName != "" &&
		e.InterviewDatetime != nil && *e.InterviewDatetime != ""
}
