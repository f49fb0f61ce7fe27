// ABOUTME: Scan CLI commands
// ABOUTME: Decodes QR images from disk and pushes the matching form to Salesforce
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/harperreed/scanpush/sync"
)

func readImageArg(fs *flag.FlagSet, imageFlag string) ([]byte, error) {
	path := imageFlag
	if path == "" && fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if path == "" {
		return nil, fmt.Errorf("image path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// describe adds the upstream detail to a scan failure when there is one.
func describe(err error) error {
	var se *sync.Error
	if errors.As(err, &se) && se.Detail != "" {
		return fmt.Errorf("%w\n  detail: %s", err, se.Detail)
	}
	return err
}

// ScanCommand decodes an image, looks up the form, and creates the CRM record.
func ScanCommand(ctx context.Context, orchestrator *sync.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	imagePath := fs.String("image", "", "Path to the photo or scan")
	_ = fs.Parse(args)

	image, err := readImageArg(fs, *imagePath)
	if err != nil {
		return err
	}

	outcome, err := orchestrator.ScanAndSync(ctx, image)
	if err != nil {
		return describe(err)
	}

	fmt.Printf("✓ Synced form %s to Salesforce\n", outcome.Identifier)
	fmt.Printf("  Record ID: %s\n", outcome.Result.RemoteID)
	fmt.Printf("  Name:      %s\n", outcome.Result.Payload.Name)
	if outcome.Result.Payload.EmailAddress != "" {
		fmt.Printf("  Email:     %s\n", outcome.Result.Payload.EmailAddress)
	}
	for _, w := range outcome.Result.Warnings {
		fmt.Printf("  ⚠️  %s\n", w.Message)
	}

	return nil
}

// DecodeCommand prints the form ID carried by an image without touching the CRM.
func DecodeCommand(ctx context.Context, orchestrator *sync.Orchestrator, args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	imagePath := fs.String("image", "", "Path to the photo or scan")
	_ = fs.Parse(args)

	image, err := readImageArg(fs, *imagePath)
	if err != nil {
		return err
	}

	id, err := orchestrator.DecodeIdentifier(ctx, image)
	if err != nil {
		return describe(err)
	}

	fmt.Println(id)
	return nil
}
