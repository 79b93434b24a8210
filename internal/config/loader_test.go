package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Service.Port)
	assert.Equal(t, DefaultMaxSkewSeconds, cfg.Webhook.MaxSkewSeconds)
	assert.Equal(t, "./data/conversations", cfg.Store.DataDir)
	assert.Equal(t, filepath.Join("./data/conversations", "analysis"), cfg.Store.AnalysisDir)
	assert.Equal(t, ":4000", cfg.Listen())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "convrelay.yaml")
	content := `
service:
  port: 9090
  log_level: debug
webhook:
  secret: file-secret
  max_skew_seconds: 60
store:
  data_dir: /tmp/records
tasks:
  enabled: true
  path: /tmp/tasks.db
  tick_interval: 1s
  max_attempts: 2
  backoff_base: 5s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	assert.NoError(t, err)

	assert.Equal(t, 9090, cfg.Service.Port)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "file-secret", cfg.Webhook.Secret)
	assert.Equal(t, 60, cfg.Webhook.MaxSkewSeconds)
	assert.Equal(t, "/tmp/records", cfg.Store.DataDir)
	assert.Equal(t, time.Second, cfg.Tasks.TickInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "convrelay.yaml")
	content := `
service:
  port: 9090
webhook:
  secret: file-secret
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "5001")
	t.Setenv("WEBHOOK_SECRET", "env-secret")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	assert.NoError(t, err)

	assert.Equal(t, 5001, cfg.Service.Port)
	assert.Equal(t, "env-secret", cfg.Webhook.Secret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Service.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing secret is allowed",
			mutate:  func(c *Config) { c.Webhook.Secret = "" },
			wantErr: false,
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Service.Port = 0 },
			wantErr: true,
		},
		{
			name:    "negative skew",
			mutate:  func(c *Config) { c.Webhook.MaxSkewSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.Store.DataDir = "" },
			wantErr: true,
		},
		{
			name:    "tasks enabled without path",
			mutate:  func(c *Config) { c.Tasks.Path = "" },
			wantErr: true,
		},
		{
			name:    "tasks disabled ignores task settings",
			mutate:  func(c *Config) { c.Tasks.Enabled = false; c.Tasks.Path = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
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
