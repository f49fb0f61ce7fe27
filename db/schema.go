// ABOUTME: Database schema definitions
// ABOUTME: Creates the form_data and sync_log tables
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS form_data (
	id TEXT PRIMARY KEY,
	name TEXT,
	email TEXT,
	phone TEXT,
	account_type TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_log (
	id TEXT PRIMARY KEY,
	form_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('succeeded', 'failed')),
	remote_id TEXT,
	error_kind TEXT,
	detail TEXT,
	attempted_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_log_form ON sync_log(form_id);
CREATE INDEX IF NOT EXISTS idx_sync_log_attempted_at ON sync_log(attempted_at DESC);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
