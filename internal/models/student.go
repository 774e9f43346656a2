package models

// Student is read-only to this system; it carries the mailbox credentials the
// ingestor logs in with.
type Student struct {
	ID       string `db:"student_id" json:"student_id"`
	Name     string `db:"name" json:"name"`
	Email    string `db:"email" json:"email"`
	Password string `db:"password" json:"-"`
}
