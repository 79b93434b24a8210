package config

import "time"

// Config represents the complete convrelay configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Webhook WebhookConfig `yaml:"webhook"`
	Store   StoreConfig   `yaml:"store"`
	Tasks   TasksConfig   `yaml:"tasks"`
	CORS    CORSConfig    `yaml:"cors,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port" env:"PORT"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// WebhookConfig defines webhook ingestion settings.
type WebhookConfig struct {
	// Secret is the shared HMAC secret. Empty disables ingestion (500),
	// never the process.
	Secret string `yaml:"secret" env:"WEBHOOK_SECRET"`

	// MaxSkewSeconds bounds |now - signed timestamp| before a signature
	// is considered stale.
	MaxSkewSeconds int `yaml:"max_skew_seconds" env:"MAX_SKEW_SECONDS"`

	// MaxBodySize is the maximum allowed request body size in bytes.
	// Audio payloads arrive base64-encoded inline, so the default is
	// generous.
	MaxBodySize int64 `yaml:"max_body_size"`
}

// StoreConfig defines payload storage settings.
type StoreConfig struct {
	// DataDir holds one JSON file per stored record.
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`

	// AnalysisDir holds transcript analysis sidecars. Defaults to
	// DataDir/analysis when empty.
	AnalysisDir string `yaml:"analysis_dir"`
}

// TasksConfig defines the out-of-band task queue settings.
type TasksConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Path         string        `yaml:"path" env:"TASKS_DB"`
	TickInterval time.Duration `yaml:"tick_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
}

// CORSConfig defines cross-origin settings for the retrieval surface.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ORIGINS" envSeparator:","`
}

// Default values.
const (
	DefaultPort           = 4000
	DefaultMaxSkewSeconds = 300
	DefaultMaxBodySize    = 16 * 1024 * 1024 // 16 MB
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "convrelay",
			Port:     DefaultPort,
			LogLevel: "info",
		},
		Webhook: WebhookConfig{
			MaxSkewSeconds: DefaultMaxSkewSeconds,
			MaxBodySize:    DefaultMaxBodySize,
		},
		Store: StoreConfig{
			DataDir: "./data/conversations",
		},
		Tasks: TasksConfig{
			Enabled:      true,
			Path:         "./data/tasks.db",
			TickInterval: 5 * time.Second,
			MaxAttempts:  4,
			BackoffBase:  30 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}
