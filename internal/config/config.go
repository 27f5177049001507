package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"groupcoh/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Engine EngineConfig
	Server ServerConfig
	Log    LogConfig
}

// EngineConfig controls the group coherence engine
type EngineConfig struct {
	Workers    int     // parallel workers per run
	CacheDir   string  // where out-of-core transform caches are created
	Percentile float64 // default surrogate percentile
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port      string
	MaxBodyMB int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// DefaultEngineConfig is what the engine runs with when nothing is configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:    runtime.NumCPU(),
		CacheDir:   os.TempDir(),
		Percentile: 95,
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	defaults := DefaultEngineConfig()

	config := &Config{
		Engine: EngineConfig{
			Workers:    getEnvIntOrDefault("GROUPCOH_WORKERS", defaults.Workers),
			CacheDir:   getEnvOrDefault("GROUPCOH_CACHE_DIR", defaults.CacheDir),
			Percentile: getEnvFloatOrDefault("GROUPCOH_PERCENTILE", defaults.Percentile),
		},
		Server: ServerConfig{
			Port:      getEnvOrDefault("PORT", "8080"),
			MaxBodyMB: getEnvIntOrDefault("GROUPCOH_MAX_BODY_MB", 64),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
		},
	}

	if err := config.Engine.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	if config.Server.MaxBodyMB < 1 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("GROUPCOH_MAX_BODY_MB must be positive, got %d", config.Server.MaxBodyMB))
	}

	return config, nil
}

// Validate checks engine settings
func (c EngineConfig) Validate() error {
	if c.Workers < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Percentile < 0 || c.Percentile > 100 {
		return errors.ConfigInvalid(fmt.Sprintf("percentile must lie in [0, 100], got %g", c.Percentile))
	}
	if c.CacheDir == "" {
		return errors.ConfigInvalid("cache directory is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
