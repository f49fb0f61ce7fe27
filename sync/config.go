// ABOUTME: Salesforce connection settings and credential loading
// ABOUTME: Reads config from the XDG data dir with environment variable overrides
package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

const (
	DefaultTokenURL      = "https://login.salesforce.com/services/oauth2/token"
	DefaultObjectAPIName = "User_Application_form_ABSA__c"
	DefaultTimeout       = 30 * time.Second
)

// Credentials are the password-grant secrets. They are loaded once at
// startup and never change for the life of the process.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

// Config holds everything the CRM client needs.
type Config struct {
	Credentials
	TokenURL      string `json:"token_url"`
	ObjectAPIName string `json:"object_api_name"`
	// Timeout bounds each outbound call (auth and write separately).
	Timeout Duration `json:"timeout,omitempty"`
	// RequestsPerSecond caps outbound calls; 0 disables limiting.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
}

// Duration is a time.Duration that reads and writes as a string like "30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timeout must be a duration string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConfig returns a config with every non-secret field populated.
func DefaultConfig() *Config {
	return &Config{
		TokenURL:      DefaultTokenURL,
		ObjectAPIName: DefaultObjectAPIName,
		Timeout:       Duration(DefaultTimeout),
	}
}

// ConfigDir returns XDG-compliant directory for scanpush data.
func ConfigDir() string {
	return filepath.Join(xdg.DataHome, "scanpush")
}

// ConfigPath returns XDG-compliant path for the Salesforce configuration.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "salesforce.json")
}

// LoadConfig loads the Salesforce configuration from the XDG data directory.
// A missing file yields defaults. Environment variables override file values:
// - SALESFORCE_CLIENT_ID
// - SALESFORCE_CLIENT_SECRET
// - SALESFORCE_USERNAME
// - SALESFORCE_PASSWORD
// - SALESFORCE_TOKEN_URL
// - SALESFORCE_OBJECT
// - SALESFORCE_TIMEOUT (e.g. "15s")
// - SALESFORCE_RPS.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigFile()
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// LoadConfigFile reads only the config file, with defaults and no
// environment overrides. Use it when the result will be saved back.
func LoadConfigFile() (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to open salesforce config file: %w", err)
		}
	} else {
		defer func() { _ = f.Close() }()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode salesforce config: %w", err)
		}
	}
	cfg.applyDefaults()

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SALESFORCE_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("SALESFORCE_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}
	if v := os.Getenv("SALESFORCE_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("SALESFORCE_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("SALESFORCE_TOKEN_URL"); v != "" {
		cfg.TokenURL = v
	}
	if v := os.Getenv("SALESFORCE_OBJECT"); v != "" {
		cfg.ObjectAPIName = v
	}
	if v := os.Getenv("SALESFORCE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SALESFORCE_TIMEOUT: %w", err)
		}
		cfg.Timeout = Duration(d)
	}
	if v := os.Getenv("SALESFORCE_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SALESFORCE_RPS: %w", err)
		}
		cfg.RequestsPerSecond = rps
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.ObjectAPIName == "" {
		c.ObjectAPIName = DefaultObjectAPIName
	}
	if c.Timeout <= 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
}

// SaveConfig writes cfg to the XDG data directory with owner-only permissions.
func SaveConfig(cfg *Config) error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// IsConfigured reports whether all four credentials are present.
func (c *Config) IsConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

// Masked returns a copy safe to print: secrets replaced by a fixed marker.
func (c *Config) Masked() Config {
	masked := *c
	if masked.ClientSecret != "" {
		masked.ClientSecret = "********"
	}
	if masked.Password != "" {
		masked.Password = "********"
	}
	return masked
}
