// ABOUTME: MCP server subcommand
// ABOUTME: Exposes form, QR, and scan-and-sync tools over stdio
package cli

import (
	"context"
	"log"

	"github.com/harperreed/scanpush/db"
	"github.com/harperreed/scanpush/handlers"
	"github.com/harperreed/scanpush/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServer builds the MCP server with every tool, resource, and prompt registered.
func NewMCPServer(forms *db.FormStore, journal *db.SyncLog, orchestrator *sync.Orchestrator, version string) *mcp.Server {
	formHandlers := handlers.NewFormHandlers(forms, journal, orchestrator)
	resourceHandlers := handlers.NewResourceHandlers(forms, journal)
	promptHandlers := handlers.NewPromptHandlers(forms, journal)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "scanpush",
		Version: version,
	}, nil)

	// Register tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_form",
		Description: "Store a form submission; an existing ID is never overwritten",
	}, formHandlers.SubmitForm)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_form",
		Description: "Look up a stored form by ID",
	}, formHandlers.GetForm)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_qr",
		Description: "Render a PNG QR code (base64) carrying a stored form's ID",
	}, formHandlers.GenerateQR)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "decode_qr",
		Description: "Extract the form ID from a base64-encoded image without contacting Salesforce",
	}, formHandlers.DecodeQR)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_and_sync",
		Description: "Decode a QR image, look up the form, and create the matching Salesforce record",
	}, formHandlers.ScanAndSync)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sync_attempts",
		Description: "List recent Salesforce push attempts, optionally for one form",
	}, formHandlers.ListSyncAttempts)

	// Register resources
	server.AddResource(&mcp.Resource{
		URI:      "scanpush://forms",
		Name:     "forms",
		MIMEType: "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "scanpush://forms/{id}",
		Name:        "form",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResource(&mcp.Resource{
		URI:      "scanpush://sync-attempts",
		Name:     "sync-attempts",
		MIMEType: "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "scanpush://sync-attempts/{form_id}",
		Name:        "form-sync-attempts",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	// Register prompts
	formArg := []*mcp.PromptArgument{{Name: "form_id", Description: "Form ID", Required: true}}

	server.AddPrompt(&mcp.Prompt{
		Name:        "form-review",
		Description: "Review a stored form before it is pushed to Salesforce",
		Arguments:   formArg,
	}, promptHandlers.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "sync-diagnosis",
		Description: "Explain a form's failed Salesforce pushes",
		Arguments:   formArg,
	}, promptHandlers.GetPrompt)

	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, forms *db.FormStore, journal *db.SyncLog, orchestrator *sync.Orchestrator, version string) error {
	log.Println("Starting scanpush MCP server...")

	server := NewMCPServer(forms, journal, orchestrator, version)
	return server.Run(ctx, &mcp.StdioTransport{})
}
