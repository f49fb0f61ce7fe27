// ABOUTME: Sync history CLI command
// ABOUTME: Lists journaled Salesforce push attempts
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/harperreed/scanpush/db"
)

// HistoryCommand prints recent push attempts, newest first.
func HistoryCommand(ctx context.Context, journal *db.SyncLog, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	form := fs.String("form", "", "Only show attempts for this form ID")
	limit := fs.Int("limit", 20, "Maximum results")
	_ = fs.Parse(args)

	attempts, err := journal.ListAttempts(ctx, *form, *limit)
	if err != nil {
		return fmt.Errorf("failed to list sync attempts: %w", err)
	}

	if len(attempts) == 0 {
		fmt.Println("No sync attempts recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tFORM\tSTATUS\tRECORD\tERROR")
	_, _ = fmt.Fprintln(w, "----\t----\t------\t------\t-----")
	for _, a := range attempts {
		outcome := a.RemoteID
		if outcome == "" {
			outcome = "-"
		}
		failure := a.ErrorKind
		if failure == "" {
			failure = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.AttemptedAt.Local().Format("2006-01-02 15:04:05"), a.FormID, a.Status, outcome, failure)
	}
	_ = w.Flush()

	return nil
}
