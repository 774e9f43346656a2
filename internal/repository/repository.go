package repository

import "github.com/jmoiron/sqlx"

// pick returns exec when the caller supplied one (usually a *sqlx.Tx) and falls
// back to the shared pool otherwise.
func pick(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
