package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once    sync.Once
	initErr error
)

// Init initializes the configuration system.
// This should be called once at application startup.
func Init() error {
	once.Do(func() {
		setDefaults()

		// Environment variable overrides
		viper.SetEnvPrefix("PODLETTER")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		configPath := filepath.Clean("./config/settings.yaml")
		viper.SetConfigFile(configPath)

		if err := viper.ReadInConfig(); err != nil {
			// Missing config file is fine; defaults and env vars apply
			if !os.IsNotExist(err) {
				initErr = fmt.Errorf("error reading config file %s: %w", configPath, err)
				return
			}
		}

		if err := validate(); err != nil {
			initErr = fmt.Errorf("invalid configuration: %w", err)
		}
	})

	return initErr
}

// GetConfig returns the current configuration as a struct.
// Init() must be called before using this.
func GetConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// GetString returns a string config value
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a time.Duration config value
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database
	viper.SetDefault("database.dsn", "./data/podletter.db")
	viper.SetDefault("database.log_queries", false)

	// Object storage
	viper.SetDefault("storage.bucket", "transcripts")

	// Primary transcript provider
	viper.SetDefault("provider.timeout", 30*time.Second)
	viper.SetDefault("provider.user_agent", "PodletterAPI/1.0")
	viper.SetDefault("provider.rate_limit", 5)
	viper.SetDefault("provider.cache_ttl", 15*time.Minute)

	// Fallback transcriber
	viper.SetDefault("fallback.enabled", false)
	viper.SetDefault("fallback.model", "whisper-1")
	viper.SetDefault("fallback.timeout", 10*time.Minute)
	viper.SetDefault("fallback.max_file_size_mb", 100)
	viper.SetDefault("fallback.max_per_run", 5)
	viper.SetDefault("fallback.statuses", []string{"no_transcript_found", "no_match", "error"})

	// Worker
	viper.SetDefault("worker.lookback_hours", 48)
	viper.SetDefault("worker.max_episodes", 200)
	viper.SetDefault("worker.batch_size", 50)
	viper.SetDefault("worker.batch_delay", 100*time.Millisecond)
	viper.SetDefault("worker.use_lock", true)
	viper.SetDefault("worker.recheck", false)
	viper.SetDefault("worker.recheck_count", 25)
	viper.SetDefault("worker.schedule", "0 3 * * *")

	// Feed sync
	viper.SetDefault("sync.timeout", 30*time.Second)
	viper.SetDefault("sync.user_agent", "PodletterAPI/1.0")
}

// validate validates the configuration using Viper values
func validate() error {
	port := viper.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	if viper.GetString("database.dsn") == "" {
		return fmt.Errorf("database.dsn must be configured")
	}

	// Auto-correct invalid worker sizing
	if viper.GetInt("worker.batch_size") <= 0 {
		viper.Set("worker.batch_size", 50)
	}
	if viper.GetInt("worker.max_episodes") <= 0 {
		viper.Set("worker.max_episodes", 200)
	}
	if viper.GetInt("worker.lookback_hours") <= 0 {
		viper.Set("worker.lookback_hours", 48)
	}

	if viper.GetBool("fallback.enabled") {
		if viper.GetString("fallback.api_url") == "" || viper.GetString("fallback.api_key") == "" {
			return fmt.Errorf("fallback.api_url and fallback.api_key are required when fallback is enabled")
		}
	}

	return nil
}
