// ABOUTME: Form record repository
// ABOUTME: Insert-if-absent and exact-match lookups for submitted forms
package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/harperreed/scanpush/models"
)

var ErrInvalidForm = errors.New("form record requires an id")

// FormStore persists submitted form records keyed by their caller-supplied ID.
type FormStore struct {
	db *sql.DB
}

// NewFormStore creates a new form repository.
func NewFormStore(db *sql.DB) *FormStore {
	return &FormStore{db: db}
}

// InsertIfAbsent stores rec unless a record with the same ID already exists.
// It reports whether a row was written; an existing record is never modified.
func (s *FormStore) InsertIfAbsent(ctx context.Context, rec *models.FormRecord) (bool, error) {
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return false, ErrInvalidForm
	}

	createdAt := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO form_data (id, name, email, phone, account_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Email, rec.Phone, rec.AccountType, createdAt)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	rec.CreatedAt = createdAt
	return true, nil
}

// Get returns the record with the given ID, or nil if there is none.
func (s *FormStore) Get(ctx context.Context, id string) (*models.FormRecord, error) {
	rec := &models.FormRecord{}
	var name, email, phone, accountType sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, account_type, created_at
		FROM form_data WHERE id = ?
	`, id).Scan(&rec.ID, &name, &email, &phone, &accountType, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Name = name.String
	rec.Email = email.String
	rec.Phone = phone.String
	rec.AccountType = accountType.String

	return rec, nil
}

// List returns the most recently submitted records first.
func (s *FormStore) List(ctx context.Context, limit int) ([]models.FormRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, account_type, created_at
		FROM form_data
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.FormRecord
	for rows.Next() {
		var rec models.FormRecord
		var name, email, phone, accountType sql.NullString

		if err := rows.Scan(&rec.ID, &name, &email, &phone, &accountType, &rec.CreatedAt); err != nil {
			return nil, err
		}

		rec.Name = name.String
		rec.Email = email.String
		rec.Phone = phone.String
		rec.AccountType = accountType.String
		records = append(records, rec)
	}

	return records, rows.Err()
}
