package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FT_CLIENT_ID", "id")
	t.Setenv("FT_CLIENT_SECRET", "secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 150, cfg.FranceTravail.PageSize)
	assert.Equal(t, 72*time.Hour, cfg.FranceTravail.StaleAfter)
	assert.Equal(t, 10, cfg.APEC.DuplicateTolerance)
	assert.Len(t, cfg.FranceTravail.Keywords, 5)
	assert.True(t, cfg.SourceEnabled("wttj"))
}

func TestLoadConfigFileAndEnvExpansion(t *testing.T) {
	t.Setenv("PF_TEST_SECRET", "from-env")
	t.Setenv("FT_CLIENT_ID", "id")

	path := writeConfig(t, `
data_dir: /tmp/pathfinder
pipeline:
  sources: [francetravail, apec]
francetravail:
  client_secret: ${PF_TEST_SECRET}
  stale_after: 24h
apec:
  max_pages: 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/pathfinder", cfg.DataDir)
	assert.Equal(t, "from-env", cfg.FranceTravail.ClientSecret)
	assert.Equal(t, 24*time.Hour, cfg.FranceTravail.StaleAfter)
	assert.Equal(t, 5, cfg.APEC.MaxPages)
	assert.False(t, cfg.SourceEnabled("wttj"))
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("FT_CLIENT_ID", "id")
	t.Setenv("FT_CLIENT_SECRET", "secret")
	t.Setenv("DATA_DIR", "/srv/data")
	t.Setenv("PIPELINE_SOURCES", "wttj, apec")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("TELEGRAM_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/data", cfg.DataDir)
	assert.Equal(t, []string{"wttj", "apec"}, cfg.Pipeline.Sources)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "valid with credentials",
			mutate: func(c *Config) { c.FranceTravail.ClientID, c.FranceTravail.ClientSecret = "a", "b" },
		},
		{
			name:    "missing credentials while source enabled",
			mutate:  func(c *Config) {},
			wantErr: true,
		},
		{
			name:   "missing credentials but source disabled",
			mutate: func(c *Config) { c.Pipeline.Sources = []string{"wttj"} },
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.Pipeline.Sources = []string{"indeed"} },
			wantErr: true,
		},
		{
			name: "page size above api window",
			mutate: func(c *Config) {
				c.Pipeline.Sources = []string{"francetravail"}
				c.FranceTravail.ClientID, c.FranceTravail.ClientSecret = "a", "b"
				c.FranceTravail.PageSize = 500
			},
			wantErr: true,
		},
		{
			name: "spaces enabled without bucket",
			mutate: func(c *Config) {
				c.Pipeline.Sources = []string{"wttj"}
				c.Spaces.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "telegram enabled without chat",
			mutate: func(c *Config) {
				c.Pipeline.Sources = []string{"wttj"}
				c.Telegram.Enabled = true
				c.Telegram.Token = "tok"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
