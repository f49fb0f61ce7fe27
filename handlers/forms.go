// ABOUTME: Form and scan MCP tool handlers
// ABOUTME: Implements submit_form, get_form, generate_qr, decode_qr, scan_and_sync, and list_sync_attempts
package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/scanpush/db"
	"github.com/harperreed/scanpush/models"
	"github.com/harperreed/scanpush/qr"
	"github.com/harperreed/scanpush/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type FormHandlers struct {
	forms        *db.FormStore
	journal      *db.SyncLog
	orchestrator *sync.Orchestrator
}

func NewFormHandlers(forms *db.FormStore, journal *db.SyncLog, orchestrator *sync.Orchestrator) *FormHandlers {
	return &FormHandlers{forms: forms, journal: journal, orchestrator: orchestrator}
}

type FormOutput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	AccountType string `json:"accountType,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	Created     *bool  `json:"created,omitempty"`
}

func formToOutput(rec *models.FormRecord) FormOutput {
	out := FormOutput{
		ID:          rec.ID,
		Name:        rec.Name,
		Email:       rec.Email,
		Phone:       rec.Phone,
		AccountType: rec.AccountType,
	}
	if !rec.CreatedAt.IsZero() {
		out.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return out
}

// toolError keeps the failure kind and any CRM detail visible to the caller.
func toolError(err error) error {
	var se *sync.Error
	if errors.As(err, &se) && se.Detail != "" {
		return fmt.Errorf("%w (detail: %s)", err, se.Detail)
	}
	return err
}

type SubmitFormInput struct {
	ID          string `json:"id,omitempty" jsonschema:"Form ID (generated when omitted)"`
	Name        string `json:"name" jsonschema:"Applicant name (required)"`
	Email       string `json:"email,omitempty" jsonschema:"Email address"`
	Phone       string `json:"phone,omitempty" jsonschema:"Phone number"`
	AccountType string `json:"accountType,omitempty" jsonschema:"Account type, e.g. Personal or Business"`
}

func (h *FormHandlers) SubmitForm(ctx context.Context, _ *mcp.CallToolRequest, input SubmitFormInput) (*mcp.CallToolResult, FormOutput, error) {
	rec := &models.FormRecord{
		ID:          input.ID,
		Name:        input.Name,
		Email:       input.Email,
		Phone:       input.Phone,
		AccountType: input.AccountType,
	}
	rec.Normalize()

	if rec.Name == "" {
		return nil, FormOutput{}, fmt.Errorf("name is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	created, err := h.forms.InsertIfAbsent(ctx, rec)
	if err != nil {
		return nil, FormOutput{}, fmt.Errorf("failed to store form: %w", err)
	}

	if !created {
		stored, err := h.forms.Get(ctx, rec.ID)
		if err != nil {
			return nil, FormOutput{}, fmt.Errorf("failed to load existing form: %w", err)
		}
		if stored != nil {
			rec = stored
		}
	}

	out := formToOutput(rec)
	out.Created = &created
	return nil, out, nil
}

type GetFormInput struct {
	ID string `json:"id" jsonschema:"Form ID (required)"`
}

func (h *FormHandlers) GetForm(ctx context.Context, _ *mcp.CallToolRequest, input GetFormInput) (*mcp.CallToolResult, FormOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, FormOutput{}, fmt.Errorf("id is required")
	}

	rec, err := sync.NewResolver(h.forms).Resolve(ctx, strings.TrimSpace(input.ID))
	if err != nil {
		return nil, FormOutput{}, toolError(err)
	}

	return nil, formToOutput(rec), nil
}

type GenerateQRInput struct {
	ID   string `json:"id" jsonschema:"Form ID to encode (required)"`
	Size int    `json:"size,omitempty" jsonschema:"Image edge length in pixels (default 256)"`
}

type GenerateQROutput struct {
	ID        string `json:"id"`
	PNGBase64 string `json:"png_base64"`
}

func (h *FormHandlers) GenerateQR(ctx context.Context, _ *mcp.CallToolRequest, input GenerateQRInput) (*mcp.CallToolResult, GenerateQROutput, error) {
	_, form, err := h.GetForm(ctx, nil, GetFormInput{ID: input.ID})
	if err != nil {
		return nil, GenerateQROutput{}, err
	}

	png, err := qr.Encode(form.ID, input.Size)
	if err != nil {
		return nil, GenerateQROutput{}, fmt.Errorf("failed to render qr code: %w", err)
	}

	return nil, GenerateQROutput{ID: form.ID, PNGBase64: base64.StdEncoding.EncodeToString(png)}, nil
}

type ImageInput struct {
	ImageBase64 string `json:"image_base64" jsonschema:"Base64-encoded photo or scan containing a QR code (required)"`
}

func (in ImageInput) decode() ([]byte, error) {
	if in.ImageBase64 == "" {
		return nil, fmt.Errorf("image_base64 is required")
	}
	data, err := base64.StdEncoding.DecodeString(in.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid image_base64: %w", err)
	}
	return data, nil
}

type DecodeQROutput struct {
	ID string `json:"id"`
}

func (h *FormHandlers) DecodeQR(ctx context.Context, _ *mcp.CallToolRequest, input ImageInput) (*mcp.CallToolResult, DecodeQROutput, error) {
	image, err := input.decode()
	if err != nil {
		return nil, DecodeQROutput{}, err
	}

	id, err := h.orchestrator.DecodeIdentifier(ctx, image)
	if err != nil {
		return nil, DecodeQROutput{}, toolError(err)
	}

	return nil, DecodeQROutput{ID: id}, nil
}

type ScanAndSyncOutput struct {
	ID       string             `json:"id"`
	RemoteID string             `json:"remote_id"`
	Fields   sync.RecordPayload `json:"fields"`
}

func (h *FormHandlers) ScanAndSync(ctx context.Context, _ *mcp.CallToolRequest, input ImageInput) (*mcp.CallToolResult, ScanAndSyncOutput, error) {
	image, err := input.decode()
	if err != nil {
		return nil, ScanAndSyncOutput{}, err
	}

	outcome, err := h.orchestrator.ScanAndSync(ctx, image)
	if err != nil {
		return nil, ScanAndSyncOutput{}, toolError(err)
	}

	return nil, ScanAndSyncOutput{
		ID:       outcome.Identifier,
		RemoteID: outcome.Result.RemoteID,
		Fields:   outcome.Result.Payload,
	}, nil
}

type ListSyncAttemptsInput struct {
	FormID string `json:"form_id,omitempty" jsonschema:"Only attempts for this form ID"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 20)"`
}

type SyncAttemptOutput struct {
	ID          string `json:"id"`
	FormID      string `json:"form_id"`
	Status      string `json:"status"`
	RemoteID    string `json:"remote_id,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Detail      string `json:"detail,omitempty"`
	AttemptedAt string `json:"attempted_at"`
}

type ListSyncAttemptsOutput struct {
	Attempts []SyncAttemptOutput `json:"attempts"`
}

func (h *FormHandlers) ListSyncAttempts(ctx context.Context, _ *mcp.CallToolRequest, input ListSyncAttemptsInput) (*mcp.CallToolResult, ListSyncAttemptsOutput, error) {
	attempts, err := h.journal.ListAttempts(ctx, input.FormID, input.Limit)
	if err != nil {
		return nil, ListSyncAttemptsOutput{}, err
	}

	out := ListSyncAttemptsOutput{Attempts: make([]SyncAttemptOutput, 0, len(attempts))}
	for _, a := range attempts {
		out.Attempts = append(out.Attempts, SyncAttemptOutput{
			ID:          a.ID,
			FormID:      a.FormID,
			Status:      a.Status,
			RemoteID:    a.RemoteID,
			ErrorKind:   a.ErrorKind,
			Detail:      a.Detail,
			AttemptedAt: a.AttemptedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}
