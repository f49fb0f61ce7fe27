// ABOUTME: Tests for Salesforce configuration loading
// ABOUTME: Covers XDG paths, defaults, env overrides, and secret masking
package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempDataHome(t *testing.T) {
	t.Helper()

	origHome := xdg.DataHome
	xdg.DataHome = t.TempDir()
	t.Cleanup(func() { xdg.DataHome = origHome })

	for _, key := range []string{
		"SALESFORCE_CLIENT_ID", "SALESFORCE_CLIENT_SECRET", "SALESFORCE_USERNAME", "SALESFORCE_PASSWORD",
		"SALESFORCE_TOKEN_URL", "SALESFORCE_OBJECT", "SALESFORCE_TIMEOUT", "SALESFORCE_RPS",
	} {
		t.Setenv(key, "")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()

	assert.Equal(t, filepath.Join(xdg.DataHome, "scanpush"), filepath.Dir(path))
	assert.Equal(t, "salesforce.json", filepath.Base(path))
}

func TestLoadConfigDefaults(t *testing.T) {
	useTempDataHome(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenURL, cfg.TokenURL)
	assert.Equal(t, DefaultObjectAPIName, cfg.ObjectAPIName)
	assert.Equal(t, Duration(DefaultTimeout), cfg.Timeout)
	assert.False(t, cfg.IsConfigured())
}

func TestSaveAndLoadConfig(t *testing.T) {
	useTempDataHome(t)

	original := &Config{
		Credentials: Credentials{
			ClientID: "id", ClientSecret: "secret", Username: "u@example.com", Password: "pw",
		},
		TokenURL:          "https://test.salesforce.com/services/oauth2/token",
		ObjectAPIName:     "Lead",
		Timeout:           Duration(10 * time.Second),
		RequestsPerSecond: 2,
	}
	require.NoError(t, SaveConfig(original))

	info, err := os.Stat(ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
	assert.True(t, loaded.IsConfigured())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	useTempDataHome(t)
	require.NoError(t, SaveConfig(&Config{Credentials: Credentials{ClientID: "file-id"}}))

	t.Setenv("SALESFORCE_CLIENT_ID", "env-id")
	t.Setenv("SALESFORCE_PASSWORD", "env-pw")
	t.Setenv("SALESFORCE_OBJECT", "Contact")
	t.Setenv("SALESFORCE_TIMEOUT", "5s")
	t.Setenv("SALESFORCE_RPS", "0.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.ClientID)
	assert.Equal(t, "env-pw", cfg.Password)
	assert.Equal(t, "Contact", cfg.ObjectAPIName)
	assert.Equal(t, Duration(5*time.Second), cfg.Timeout)
	assert.Equal(t, 0.5, cfg.RequestsPerSecond)
	assert.Equal(t, DefaultTokenURL, cfg.TokenURL)
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	useTempDataHome(t)
	t.Setenv("SALESFORCE_TIMEOUT", "soon")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigCorruptFile(t *testing.T) {
	useTempDataHome(t)
	require.NoError(t, os.MkdirAll(ConfigDir(), 0700))
	require.NoError(t, os.WriteFile(ConfigPath(), []byte("{not json"), 0600))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfigMasked(t *testing.T) {
	cfg := &Config{Credentials: Credentials{ClientID: "id", ClientSecret: "secret", Username: "u", Password: "pw"}}

	masked := cfg.Masked()
	assert.Equal(t, "id", masked.ClientID)
	assert.NotEqual(t, "secret", masked.ClientSecret)
	assert.NotEqual(t, "pw", masked.Password)
	assert.Equal(t, "secret", cfg.ClientSecret, "original must be untouched")
}

func TestLoadConfigFileIgnoresEnvironment(t *testing.T) {
	useTempDataHome(t)

	require.NoError(t, SaveConfig(&Config{
		Credentials: Credentials{ClientID: "cid", ClientSecret: "secret", Username: "u", Password: "file-pw"},
	}))
	t.Setenv("SALESFORCE_PASSWORD", "env-pw")

	fileOnly, err := LoadConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "file-pw", fileOnly.Password)
	assert.Equal(t, DefaultTokenURL, fileOnly.TokenURL)

	effective, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "env-pw", effective.Password)
}
