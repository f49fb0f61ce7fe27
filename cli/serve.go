// ABOUTME: HTTP server subcommand
// ABOUTME: Serves the form submission and QR scan routes until the context is cancelled
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/harperreed/scanpush/db"
	"github.com/harperreed/scanpush/sync"
	"github.com/harperreed/scanpush/web"
)

// ServeCommand starts the HTTP server.
func ServeCommand(ctx context.Context, forms *db.FormStore, orchestrator *sync.Orchestrator, defaultPort int, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", defaultPort, "HTTP port")
	_ = fs.Parse(args)

	if *port <= 0 || *port > 65535 {
		return fmt.Errorf("invalid port: %d", *port)
	}

	return web.NewServer(forms, orchestrator).Start(ctx, *port)
}
