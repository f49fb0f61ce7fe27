// ABOUTME: Entry point for the scanpush server, MCP server, and CLI
// ABOUTME: Routes to the web server, MCP server, or CLI commands based on arguments
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/harperreed/scanpush/cli"
	"github.com/harperreed/scanpush/db"
	"github.com/harperreed/scanpush/sync"
	"github.com/harperreed/scanpush/telemetry"
	"github.com/joho/godotenv"
)

const version = "0.1.0"

const defaultPort = 5000

// app holds the dependencies shared by every command that touches the store.
type app struct {
	forms        *db.FormStore
	journal      *db.SyncLog
	orchestrator *sync.Orchestrator
}

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/scanpush/forms.db)")
	initOnly := flag.Bool("init", false, "Initialize database and exit")
	envFile := flag.String("env-file", ".env", "Environment file to load before reading config")
	trace := flag.Bool("trace", false, "Print OpenTelemetry spans to stderr")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	// Handle version flag
	if *showVersion {
		fmt.Printf("scanpush version %s\n", version)
		os.Exit(0)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "scanpush",
		ServiceVersion: version,
		Stdout:         *trace,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	args := flag.Args()

	if *initOnly {
		finalDBPath := getDatabasePath(*dbPath)
		database, err := db.OpenDatabase(finalDBPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		_ = database.Close()
		log.Printf("Database initialized at %s", finalDBPath)
		return
	}

	// If no command specified, show usage
	if len(args) == 0 {
		printUsage()
		return
	}

	command := args[0]
	commandArgs := args[1:]

	// Config commands never touch the database.
	if command == "config" {
		if err := runConfig(commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	}

	switch command {
	case "serve", "mcp", "form", "scan", "decode", "history":
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	finalDBPath := getDatabasePath(*dbPath)
	database, err := db.OpenDatabase(finalDBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = database.Close() }()

	a, err := newApp(database)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := a.run(ctx, command, commandArgs); err != nil {
		stop()
		_ = database.Close()
		log.Fatalf("Error: %v", err)
	}
}

func newApp(database *sql.DB) (*app, error) {
	cfg, err := sync.LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsConfigured() {
		log.Printf("warning: salesforce credentials not configured; scans will fail (run 'scanpush config init')")
	}

	forms := db.NewFormStore(database)
	journal := db.NewSyncLog(database)
	crm := sync.NewSalesforceClient(cfg, nil)

	return &app{
		forms:        forms,
		journal:      journal,
		orchestrator: sync.NewOrchestrator(sync.NewResolver(forms), crm, sync.WithAttemptLog(journal)),
	}, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "serve":
		return cli.ServeCommand(ctx, a.forms, a.orchestrator, portFromEnv(), args)

	case "mcp":
		return cli.MCPCommand(ctx, a.forms, a.journal, a.orchestrator, version)

	case "scan":
		return cli.ScanCommand(ctx, a.orchestrator, args)

	case "decode":
		return cli.DecodeCommand(ctx, a.orchestrator, args)

	case "history":
		return cli.HistoryCommand(ctx, a.journal, args)

	case "form":
		if len(args) == 0 {
			return fmt.Errorf("form requires a subcommand (submit, show, list, qr)")
		}
		sub, subArgs := args[0], args[1:]
		switch sub {
		case "submit":
			return cli.SubmitFormCommand(ctx, a.forms, subArgs)
		case "show":
			return cli.ShowFormCommand(ctx, a.forms, subArgs)
		case "list":
			return cli.ListFormsCommand(ctx, a.forms, subArgs)
		case "qr":
			return cli.GenerateQRCommand(ctx, a.forms, subArgs)
		default:
			return fmt.Errorf("unknown form command: %s", sub)
		}
	}

	return fmt.Errorf("unknown command: %s", command)
}

func runConfig(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("config requires a subcommand (init, show)")
	}

	switch args[0] {
	case "init":
		return cli.ConfigInitCommand(args[1:])
	case "show":
		return cli.ConfigShowCommand(args[1:])
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

// portFromEnv reads PORT, falling back to 5000 when unset or invalid.
func portFromEnv() int {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
		log.Printf("warning: ignoring invalid PORT %q", v)
	}
	return defaultPort
}

func getDatabasePath(dbPath string) string {
	if dbPath != "" {
		return dbPath
	}
	return filepath.Join(xdg.DataHome, "scanpush", "forms.db")
}

func printUsage() {
	fmt.Printf(`scanpush v%s - Form capture and QR scan-to-Salesforce sync

USAGE:
  scanpush [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Database path (default: ~/.local/share/scanpush/forms.db)
  --init                 Initialize database and exit
  --env-file <path>      Environment file to load (default: .env)
  --trace                Print OpenTelemetry spans to stderr

COMMANDS:
  serve                  Start the HTTP server
    --port <port>          Port to listen on (default: $PORT or 5000)

  mcp                    Start MCP server on stdio

  form submit            Store a form
    --id <id>              Form ID (generated when omitted)
    --name <name>          Applicant name (required)
    --email <email>        Email address
    --phone <phone>        Phone number
    --account-type <type>  Personal or Business (default: Personal)

  form show <id>         Show a stored form
  form list              List stored forms
    --limit <n>            Maximum results (default: 50)

  form qr <id>           Write a QR code PNG for a stored form
    --output <path>        Output file (default: <id>.png)
    --size <px>            Image size (default: 256)

  scan <image>           Decode a QR image and create the Salesforce record
  decode <image>         Print the form ID in a QR image

  history                List Salesforce push attempts
    --form <id>            Only this form
    --limit <n>            Maximum results (default: 20)

  config init            Save Salesforce credentials
    --client-id, --client-secret, --username, --password
    --token-url, --object, --timeout, --rps

  config show            Show configuration (secrets masked)

ENVIRONMENT:
  SALESFORCE_CLIENT_ID, SALESFORCE_CLIENT_SECRET, SALESFORCE_USERNAME,
  SALESFORCE_PASSWORD, SALESFORCE_TOKEN_URL, SALESFORCE_OBJECT,
  SALESFORCE_TIMEOUT, SALESFORCE_RPS, PORT
`, version)
}
