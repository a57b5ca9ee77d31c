package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFiles_Defaults(t *testing.T) {
	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.DurationScan)
	assert.Equal(t, DefaultSettleDelay, cfg.Watch.SettleDelay)
	assert.Equal(t, "catalog.db", filepath.Base(cfg.Catalog))
}

func TestLoadFiles_Values(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.toml", `
jobs = 4
buffer_size = 65536
album_art = true
duration_scan = false
catalog = "/var/lib/metastream/music.db"

[log]
level = "debug"
format = "json"

[watch]
settle_delay = "500ms"
`)
	cfg, err := LoadFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, 65536, cfg.BufferSize)
	assert.True(t, cfg.AlbumArt)
	assert.False(t, cfg.DurationScan)
	assert.Equal(t, "/var/lib/metastream/music.db", cfg.Catalog)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.SettleDelay)
}

func TestLoadFiles_LaterWins(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "base.toml", "jobs = 2\nalbum_art = true\n")
	local := writeConfig(t, dir, "local.toml", "jobs = 8\n")

	cfg, err := LoadFiles(base, local)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Jobs)
	assert.True(t, cfg.AlbumArt)
}

func TestLoadFiles_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	path := writeConfig(t, t.TempDir(), "config.toml", `catalog = "~/music.db"`)
	cfg, err := LoadFiles(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "music.db"), cfg.Catalog)
}

func TestLoadFiles_Invalid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "bad.toml", "jobs = [unterminated")
	_, err := LoadFiles(path)
	assert.Error(t, err)
}

func TestLoad_MissingExplicit(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFiles_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"level", "[log]\nlevel = \"verbose\"\n", "Log.Level"},
		{"format", "[log]\nformat = \"xml\"\n", "Log.Format"},
		{"jobs", "jobs = -2\n", "Jobs must not be negative"},
		{"buffer", "buffer_size = 100\n", "BufferSize must be at least 512"},
		{"settle", "[watch]\nsettle_delay = \"-1s\"\n", "Watch.SettleDelay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.toml", tt.body)
			_, err := LoadFiles(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_NormalizesCase(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "DEBUG"
	cfg.Log.Format = "Json"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestValidate_ZeroBufferSizeAllowed(t *testing.T) {
	cfg := Default()
	cfg.BufferSize = 0
	assert.NoError(t, cfg.Validate())
}
