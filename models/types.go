// ABOUTME: Data models for submitted forms and CRM sync attempts
// ABOUTME: Defines FormRecord, SyncAttempt, and their status constants
package models

import (
	"strings"
	"time"
)

// FormRecord is a single form submission. ID is assigned by the submitter
// and never changes once stored.
type FormRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	AccountType string    `json:"accountType"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Account type values offered by the submission form. The field is free-form;
// these are the values the form itself produces.
const (
	AccountTypePersonal = "Personal"
	AccountTypeBusiness = "Business"
)

// Normalize trims surrounding whitespace from every user-supplied field.
func (f *FormRecord) Normalize() {
	f.ID = strings.TrimSpace(f.ID)
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.AccountType = strings.TrimSpace(f.AccountType)
}

// Sync attempt status constants.
const (
	SyncStatusSucceeded = "succeeded"
	SyncStatusFailed    = "failed"
)

// SyncAttempt is one journaled push of a FormRecord to the CRM.
type SyncAttempt struct {
	ID          string    `json:"id"`
	FormID      string    `json:"form_id"`
	Status      string    `json:"status"`
	RemoteID    string    `json:"remote_id,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}
