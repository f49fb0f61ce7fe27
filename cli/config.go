// ABOUTME: Salesforce configuration CLI commands
// ABOUTME: Writes credentials to the XDG config file and prints the masked result
package cli

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/harperreed/scanpush/sync"
	"golang.org/x/term"
)

// ConfigInitCommand stores Salesforce credentials. Values not given as flags
// are prompted for when stdin is a terminal; secrets are read without echo.
func ConfigInitCommand(args []string) error {
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	clientID := fs.String("client-id", "", "Connected app consumer key")
	clientSecret := fs.String("client-secret", "", "Connected app consumer secret")
	username := fs.String("username", "", "Salesforce username")
	password := fs.String("password", "", "Salesforce password (with security token appended)")
	tokenURL := fs.String("token-url", "", "OAuth token endpoint")
	object := fs.String("object", "", "Target sObject API name")
	timeout := fs.Duration("timeout", 0, "Per-call timeout (e.g. 30s)")
	rps := fs.Float64("rps", -1, "Outbound requests per second (0 disables limiting)")
	_ = fs.Parse(args)

	// Environment overrides stay out of the saved file.
	cfg, err := sync.LoadConfigFile()
	if err != nil {
		return fmt.Errorf("failed to load salesforce config: %w", err)
	}

	setIf(&cfg.ClientID, *clientID)
	setIf(&cfg.ClientSecret, *clientSecret)
	setIf(&cfg.Username, *username)
	setIf(&cfg.Password, *password)
	setIf(&cfg.TokenURL, *tokenURL)
	setIf(&cfg.ObjectAPIName, *object)
	if *timeout > 0 {
		cfg.Timeout = sync.Duration(*timeout)
	}
	if *rps >= 0 {
		cfg.RequestsPerSecond = *rps
	}

	if !cfg.IsConfigured() {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return fmt.Errorf("missing credentials: pass --client-id, --client-secret, --username, and --password")
		}
		if err := promptCredentials(fd, os.Stdin, &cfg.Credentials); err != nil {
			return err
		}
	}

	if err := sync.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save salesforce config: %w", err)
	}

	fmt.Printf("✓ Configuration saved to %s\n", sync.ConfigPath())
	return nil
}

func setIf(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func promptCredentials(fd int, in io.Reader, creds *sync.Credentials) error {
	reader := bufio.NewReader(in)

	readLine := func(label string, dst *string) error {
		if *dst != "" {
			return nil
		}
		fmt.Printf("%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
		}
		*dst = strings.TrimSpace(line)
		return nil
	}

	readSecret := func(label string, dst *string) error {
		if *dst != "" {
			return nil
		}
		fmt.Printf("%s: ", label)
		secret, err := term.ReadPassword(fd)
		fmt.Println() // New line after hidden input
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
		}
		*dst = strings.TrimSpace(string(secret))
		return nil
	}

	if err := readLine("Client ID", &creds.ClientID); err != nil {
		return err
	}
	if err := readSecret("Client secret", &creds.ClientSecret); err != nil {
		return err
	}
	if err := readLine("Username", &creds.Username); err != nil {
		return err
	}
	return readSecret("Password", &creds.Password)
}

// ConfigShowCommand prints the effective configuration with secrets masked.
func ConfigShowCommand(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg, err := sync.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load salesforce config: %w", err)
	}
	masked := cfg.Masked()

	fmt.Println("Salesforce Configuration:")
	fmt.Printf("  Config path:  %s\n", sync.ConfigPath())
	fmt.Printf("  Token URL:    %s\n", masked.TokenURL)
	fmt.Printf("  Object:       %s\n", masked.ObjectAPIName)
	fmt.Printf("  Client ID:    %s\n", masked.ClientID)
	fmt.Printf("  Secret:       %s\n", masked.ClientSecret)
	fmt.Printf("  Username:     %s\n", masked.Username)
	fmt.Printf("  Password:     %s\n", masked.Password)
	fmt.Printf("  Timeout:      %s\n", time.Duration(masked.Timeout))
	if masked.RequestsPerSecond > 0 {
		fmt.Printf("  Rate limit:   %.2f req/s\n", masked.RequestsPerSecond)
	} else {
		fmt.Printf("  Rate limit:   off\n")
	}

	if cfg.IsConfigured() {
		fmt.Printf("  Configured:   ✓ Yes\n")
	} else {
		fmt.Printf("  Configured:   ✗ No (run 'scanpush config init')\n")
	}

	return nil
}
