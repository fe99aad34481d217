package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the agent configuration, loaded from YAML with environment
// overrides
type Config struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"production"`

	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`

	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"equipqr-sync.db"`

	// Scope pins the queue to one user+organization pair. Switching either
	// means a different persisted queue.
	Scope struct {
		UserID         string `yaml:"user_id" env:"SCOPE_USER_ID"`
		OrganizationID string `yaml:"organization_id" env:"SCOPE_ORGANIZATION_ID"`
	} `yaml:"scope"`

	Backend struct {
		BaseURL string `yaml:"base_url" env:"BACKEND_BASE_URL"`
		APIKey  string `yaml:"api_key" env:"BACKEND_API_KEY"`
		Timeout int    `yaml:"timeout" env:"BACKEND_TIMEOUT" env-default:"15"` // seconds
	} `yaml:"backend"`

	Sync struct {
		MaxAttempts          int `yaml:"max_attempts" env-default:"3"`
		DebounceSeconds      int `yaml:"debounce_seconds" env-default:"2"`
		HealthCheckInterval  int `yaml:"health_check_interval" env-default:"15"` // seconds
		DrainInterval        int `yaml:"drain_interval" env-default:"60"`        // seconds
		FailedRetentionHours int `yaml:"failed_retention_hours" env-default:"168"`
	} `yaml:"sync"`

	Server struct {
		Enabled bool `yaml:"enabled" env-default:"true"`
		Port    int  `yaml:"port" env:"SERVER_PORT" env-default:"8787"`
	} `yaml:"server"`
}

// LoadConfig reads and validates the configuration file
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.Scope.UserID == "" {
		return nil, fmt.Errorf("scope.user_id is required")
	}
	if cfg.Scope.OrganizationID == "" {
		return nil, fmt.Errorf("scope.organization_id is required")
	}
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend.base_url is required")
	}

	return &cfg, nil
}
