// ABOUTME: Form CLI commands
// ABOUTME: Human-friendly commands for submitting, viewing, and printing QR codes for forms
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/harperreed/scanpush/db"
	"github.com/harperreed/scanpush/models"
	"github.com/harperreed/scanpush/qr"
	"github.com/harperreed/scanpush/sync"
)

// SubmitFormCommand stores a new form. An existing ID is left untouched.
func SubmitFormCommand(ctx context.Context, forms *db.FormStore, args []string) error {
	fs := flag.NewFlagSet("form submit", flag.ExitOnError)
	id := fs.String("id", "", "Form ID (generated when omitted)")
	name := fs.String("name", "", "Applicant name (required)")
	email := fs.String("email", "", "Email address")
	phone := fs.String("phone", "", "Phone number")
	accountType := fs.String("account-type", models.AccountTypePersonal, "Account type (Personal or Business)")
	_ = fs.Parse(args)

	rec := &models.FormRecord{
		ID:          *id,
		Name:        *name,
		Email:       *email,
		Phone:       *phone,
		AccountType: *accountType,
	}
	rec.Normalize()

	if rec.Name == "" {
		return fmt.Errorf("--name is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	created, err := forms.InsertIfAbsent(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to store form: %w", err)
	}

	if !created {
		fmt.Printf("Form %s already exists; keeping the stored record\n", rec.ID)
		return nil
	}

	fmt.Printf("✓ Form stored: %s (ID: %s)\n", rec.Name, rec.ID)
	if rec.Email != "" {
		fmt.Printf("  Email: %s\n", rec.Email)
	}
	if rec.Phone != "" {
		fmt.Printf("  Phone: %s\n", rec.Phone)
	}
	fmt.Printf("  Account type: %s\n", rec.AccountType)

	return nil
}

// formID takes the ID from --id or the first positional argument.
func formID(fs *flag.FlagSet, flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if fs.NArg() > 0 {
		return strings.TrimSpace(fs.Arg(0))
	}
	return ""
}

// ShowFormCommand prints one stored form.
func ShowFormCommand(ctx context.Context, forms *db.FormStore, args []string) error {
	fs := flag.NewFlagSet("form show", flag.ExitOnError)
	idFlag := fs.String("id", "", "Form ID")
	_ = fs.Parse(args)

	id := formID(fs, *idFlag)
	if id == "" {
		return fmt.Errorf("form ID is required")
	}

	rec, err := sync.NewResolver(forms).Resolve(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:           %s\n", rec.ID)
	fmt.Printf("Name:         %s\n", rec.Name)
	fmt.Printf("Email:        %s\n", rec.Email)
	fmt.Printf("Phone:        %s\n", rec.Phone)
	fmt.Printf("Account type: %s\n", rec.AccountType)
	if !rec.CreatedAt.IsZero() {
		fmt.Printf("Created:      %s\n", rec.CreatedAt.Format("2006-01-02 15:04"))
	}

	return nil
}

// ListFormsCommand lists stored forms, newest first.
func ListFormsCommand(ctx context.Context, forms *db.FormStore, args []string) error {
	fs := flag.NewFlagSet("form list", flag.ExitOnError)
	limit := fs.Int("limit", 50, "Maximum results")
	_ = fs.Parse(args)

	records, err := forms.List(ctx, *limit)
	if err != nil {
		return fmt.Errorf("failed to list forms: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No forms found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE\tTYPE")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-----\t----")
	for _, rec := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rec.ID, rec.Name, rec.Email, rec.Phone, rec.AccountType)
	}
	_ = w.Flush()

	fmt.Printf("\nTotal: %d form(s)\n", len(records))
	return nil
}

// GenerateQRCommand writes a PNG QR code carrying a stored form's ID.
func GenerateQRCommand(ctx context.Context, forms *db.FormStore, args []string) error {
	fs := flag.NewFlagSet("form qr", flag.ExitOnError)
	idFlag := fs.String("id", "", "Form ID")
	output := fs.String("output", "", "Output PNG path (default: <id>.png)")
	size := fs.Int("size", qr.DefaultSize, "Image edge length in pixels")
	_ = fs.Parse(args)

	id := formID(fs, *idFlag)
	if id == "" {
		return fmt.Errorf("form ID is required")
	}

	rec, err := sync.NewResolver(forms).Resolve(ctx, id)
	if err != nil {
		return err
	}

	png, err := qr.Encode(rec.ID, *size)
	if err != nil {
		return fmt.Errorf("failed to render qr code: %w", err)
	}

	path := *output
	if path == "" {
		path = rec.ID + ".png"
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return fmt.Errorf("failed to write qr code: %w", err)
	}

	fmt.Printf("✓ QR code for %s written to %s\n", rec.ID, path)
	return nil
}
