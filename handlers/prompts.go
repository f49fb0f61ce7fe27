// ABOUTME: MCP prompt handlers for reusable scan and sync workflow templates
// ABOUTME: Provides prompts for reviewing a form and diagnosing failed CRM pushes
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/scanpush/db"
	"github.com/harperreed/scanpush/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	forms   *db.FormStore
	journal *db.SyncLog
}

func NewPromptHandlers(forms *db.FormStore, journal *db.SyncLog) *PromptHandlers {
	return &PromptHandlers{forms: forms, journal: journal}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "form-review":
		return h.getFormReviewPrompt(ctx, arguments)
	case "sync-diagnosis":
		return h.getSyncDiagnosisPrompt(ctx, arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) loadForm(ctx context.Context, args map[string]string) (*models.FormRecord, error) {
	id := strings.TrimSpace(args["form_id"])
	if id == "" {
		return nil, fmt.Errorf("form_id is required")
	}

	form, err := h.forms.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch form: %w", err)
	}
	if form == nil {
		return nil, fmt.Errorf("form not found: %s", id)
	}
	return form, nil
}

func (h *PromptHandlers) getFormReviewPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	form, err := h.loadForm(ctx, args)
	if err != nil {
		return nil, err
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Review this form submission before it is pushed to Salesforce:\n\nID: %s\n", form.ID))
	promptText.WriteString(fmt.Sprintf("Name: %s\n", form.Name))
	promptText.WriteString(fmt.Sprintf("Email: %s\n", valueOrBlank(form.Email)))
	promptText.WriteString(fmt.Sprintf("Phone: %s\n", valueOrBlank(form.Phone)))
	promptText.WriteString(fmt.Sprintf("Account type: %s\n", valueOrBlank(form.AccountType)))

	promptText.WriteString("\nPlease check:")
	promptText.WriteString("\n1. Whether the email and phone look well formed")
	promptText.WriteString("\n2. Whether any field is missing that the CRM record will need")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review of form %s", form.ID),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *PromptHandlers) getSyncDiagnosisPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	form, err := h.loadForm(ctx, args)
	if err != nil {
		return nil, err
	}

	attempts, err := h.journal.ListAttempts(ctx, form.ID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sync attempts: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Diagnose the Salesforce sync history for form %s (%s).\n", form.ID, form.Name))

	if len(attempts) == 0 {
		promptText.WriteString("\nThis form has never been scanned.\n")
	} else {
		promptText.WriteString("\nRecent attempts (newest first):\n")
		for _, a := range attempts {
			line := fmt.Sprintf("- %s %s", a.AttemptedAt.Format("2006-01-02 15:04:05"), a.Status)
			if a.RemoteID != "" {
				line += fmt.Sprintf(" remote_id=%s", a.RemoteID)
			}
			if a.ErrorKind != "" {
				line += fmt.Sprintf(" kind=%s", a.ErrorKind)
			}
			if a.Detail != "" {
				line += fmt.Sprintf(" detail=%s", a.Detail)
			}
			promptText.WriteString(line + "\n")
		}
	}

	promptText.WriteString("\nExplain what went wrong, whether retrying would create a duplicate record, and what to fix first.")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Sync diagnosis for form %s", form.ID),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func valueOrBlank(s string) string {
	if s == "" {
		return "(blank)"
	}
	return s
}
