package config

import "time"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Provider ProviderConfig `mapstructure:"provider"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database settings. DSN may be a Postgres
// connection string or a sqlite file path.
type DatabaseConfig struct {
	DSN        string `mapstructure:"dsn"`
	LogQueries bool   `mapstructure:"log_queries"`
}

// StorageConfig contains object storage settings for transcript blobs
type StorageConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
	Bucket     string `mapstructure:"bucket"`
}

// ProviderConfig contains primary transcript provider API settings
type ProviderConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"` // requests per second
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// FallbackConfig contains fallback transcription settings
type FallbackConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	APIURL        string        `mapstructure:"api_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxFileSizeMB int           `mapstructure:"max_file_size_mb"`
	MaxPerRun     int           `mapstructure:"max_per_run"`
	// Statuses lists the primary-provider outcomes that escalate to the
	// fallback transcriber.
	Statuses []string `mapstructure:"statuses"`
}

// WorkerConfig contains transcript worker settings
type WorkerConfig struct {
	LookbackHours int    `mapstructure:"lookback_hours"`
	MaxEpisodes   int    `mapstructure:"max_episodes"`
	BatchSize     int    `mapstructure:"batch_size"`
	BatchDelay    time.Duration `mapstructure:"batch_delay"`
	UseLock       bool   `mapstructure:"use_lock"`
	Recheck       bool   `mapstructure:"recheck"`
	RecheckCount  int    `mapstructure:"recheck_count"`
	Schedule      string `mapstructure:"schedule"` // cron expression
}

// SyncConfig contains feed sync settings
type SyncConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}
