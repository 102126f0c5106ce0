package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilevault/tilevault-go/internal/config"
)

// chdir stands in for t.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatalf("restoring working directory: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./tilevault.db", cfg.Database.Path)
	assert.Equal(t, "https://tile.openstreetmap.org/{z}/{x}/{y}.png", cfg.Provider.URLTemplate)
	assert.Equal(t, 4, cfg.Provider.Parallelism)
	assert.True(t, cfg.Notification.Enabled)
	assert.Equal(t, "Downloading Map...", cfg.Notification.Title)
	assert.Equal(t, "tilevault", cfg.KeepAlive.Title)
	assert.Equal(t, 60, cfg.Recovery.SweepIntervalMinutes)
	assert.Equal(t, 0, cfg.Cache.TrimAfterDays)
	assert.Equal(t, 1440, cfg.Cache.TrimIntervalMinutes)
	assert.Empty(t, cfg.Admin.TokenHash)
}

func TestLoad_EnvOverrides(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("TILEVAULT_PORT", "9999")
	t.Setenv("TILEVAULT_DATABASE_PATH", "/tmp/cache.db")
	t.Setenv("TILEVAULT_PROVIDER_PARALLELISM", "2")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "/tmp/cache.db", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Provider.Parallelism)
}

func TestLoad_ConfigFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	content := []byte("port: 3000\nnotification:\n  enabled: false\n  title: Custom Title\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), content, 0644))
	chdir(t, dir)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.False(t, cfg.Notification.Enabled)
	assert.Equal(t, "Custom Title", cfg.Notification.Title)
	// Untouched keys keep their defaults.
	assert.Equal(t, "./tilevault.db", cfg.Database.Path)
}

func TestLoad_MalformedFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("port: [not closed"), 0644))
	chdir(t, dir)

	_, err := config.Load()
	assert.Error(t, err)
}
