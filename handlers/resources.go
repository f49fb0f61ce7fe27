// ABOUTME: MCP resource handlers for exposing stored forms and sync history
// ABOUTME: Provides read-only access to forms and sync attempts via scanpush:// URIs
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/scanpush/db"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "scanpush://"

type ResourceHandlers struct {
	forms   *db.FormStore
	journal *db.SyncLog
}

func NewResourceHandlers(forms *db.FormStore, journal *db.SyncLog) *ResourceHandlers {
	return &ResourceHandlers{forms: forms, journal: journal}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	path := strings.TrimPrefix(uri, resourceScheme)
	parts := strings.SplitN(path, "/", 2)

	switch parts[0] {
	case "forms":
		if len(parts) == 1 || parts[1] == "" {
			return h.readAllForms(ctx)
		}
		return h.readForm(ctx, parts[1])

	case "sync-attempts":
		if len(parts) == 1 || parts[1] == "" {
			return h.readAttempts(ctx, "")
		}
		return h.readAttempts(ctx, parts[1])

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func (h *ResourceHandlers) readAllForms(ctx context.Context) (*mcp.ReadResourceResult, error) {
	forms, err := h.forms.List(ctx, 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch forms: %w", err)
	}

	return jsonResource(resourceScheme+"forms", forms)
}

func (h *ResourceHandlers) readForm(ctx context.Context, id string) (*mcp.ReadResourceResult, error) {
	form, err := h.forms.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch form: %w", err)
	}
	if form == nil {
		return nil, fmt.Errorf("form not found: %s", id)
	}

	return jsonResource(resourceScheme+"forms/"+id, form)
}

func (h *ResourceHandlers) readAttempts(ctx context.Context, formID string) (*mcp.ReadResourceResult, error) {
	attempts, err := h.journal.ListAttempts(ctx, formID, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sync attempts: %w", err)
	}

	uri := resourceScheme + "sync-attempts"
	if formID != "" {
		uri += "/" + formID
	}
	return jsonResource(uri, attempts)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
