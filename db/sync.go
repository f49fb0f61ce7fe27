// ABOUTME: Database operations for the sync_log table
// ABOUTME: Journals every CRM push attempt with its outcome
package db

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/harperreed/scanpush/models"
	"github.com/oklog/ulid/v2"
)

// SyncLog records CRM push attempts. It never touches form_data.
type SyncLog struct {
	db *sql.DB
}

// NewSyncLog creates a new sync journal.
func NewSyncLog(db *sql.DB) *SyncLog {
	return &SyncLog{db: db}
}

func newAttemptID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// RecordAttempt inserts a journal row, filling in ID and AttemptedAt when unset.
func (l *SyncLog) RecordAttempt(ctx context.Context, attempt *models.SyncAttempt) error {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}
	if attempt.ID == "" {
		attempt.ID = newAttemptID(attempt.AttemptedAt)
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_log (id, form_id, status, remote_id, error_kind, detail, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, attempt.ID, attempt.FormID, attempt.Status,
		nullString(attempt.RemoteID), nullString(attempt.ErrorKind), nullString(attempt.Detail),
		attempt.AttemptedAt)
	if err != nil {
		return fmt.Errorf("failed to record sync attempt: %w", err)
	}

	return nil
}

// ListAttempts returns journal rows newest first. An empty formID lists all forms.
func (l *SyncLog) ListAttempts(ctx context.Context, formID string, limit int) ([]models.SyncAttempt, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	var err error

	if formID != "" {
		rows, err = l.db.QueryContext(ctx, `
			SELECT id, form_id, status, remote_id, error_kind, detail, attempted_at
			FROM sync_log
			WHERE form_id = ?
			ORDER BY attempted_at DESC, id DESC
			LIMIT ?
		`, formID, limit)
	} else {
		rows, err = l.db.QueryContext(ctx, `
			SELECT id, form_id, status, remote_id, error_kind, detail, attempted_at
			FROM sync_log
			ORDER BY attempted_at DESC, id DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sync attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.SyncAttempt
	for rows.Next() {
		var a models.SyncAttempt
		var remoteID, errorKind, detail sql.NullString

		if err := rows.Scan(&a.ID, &a.FormID, &a.Status, &remoteID, &errorKind, &detail, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync attempt: %w", err)
		}

		a.RemoteID = remoteID.String
		a.ErrorKind = errorKind.String
		a.Detail = detail.String
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
