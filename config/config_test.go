package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unset clears key for the duration of the test.
func unset(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestParseDefaults(t *testing.T) {
	for _, k := range []string{"DISCORD_TOKEN", "SETTINGS_DRIVER", "RESPONSE_TTL", "INITIAL_EXTENSIONS", "EXTENSION_ROOTS"} {
		unset(t, k)
	}

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.SettingsDriver)
	assert.Equal(t, 60*time.Second, cfg.ResponseTTL)
	assert.Equal(t, []string{"."}, cfg.ExtensionRoots)
	assert.Equal(t, []string{"extensions/owner", "extensions/help", "extensions/admin", "extensions/roles"}, cfg.InitialExtensions)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN")
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_OWNER", "160175151009382401")
	t.Setenv("SETTINGS_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://bot@localhost/bot?sslmode=disable")
	t.Setenv("STORAGE_TIMEOUT", "250ms")
	t.Setenv("INITIAL_EXTENSIONS", "extensions/roles")
	t.Setenv("WATCH_EXTENSIONS", "true")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, int64(160175151009382401), cfg.OwnerID)
	assert.Equal(t, "postgres", cfg.SettingsDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.StorageTimeout)
	assert.Equal(t, []string{"extensions/roles"}, cfg.InitialExtensions)
	assert.True(t, cfg.WatchExtensions)
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := &Config{DiscordToken: "token", SettingsDriver: "file", StorageTimeout: time.Second}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.SettingsDriver = "memory"
	require.NoError(t, cfg.Validate())
}

func TestParseRejectsBadValues(t *testing.T) {
	t.Setenv("STORAGE_TIMEOUT", "soon")
	_, err := Parse()
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	unset(t, "DISCORD_TOKEN")
	unset(t, "LOG_LEVEL")
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("DISCORD_TOKEN=from-file\nLOG_LEVEL=debug\n"), 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.DiscordToken)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadWithoutEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
