// Package config loads server configuration from an optional YAML file,
// applies defaults, and lets environment variables override either.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings.
type Config struct {
	Server struct {
		Port        string `yaml:"port"`
		DataDir     string `yaml:"dataDir"`
		DBPath      string `yaml:"dbPath"`
		MaxUploadMB int64  `yaml:"maxUploadMB"`
	} `yaml:"server"`

	Session struct {
		TTLHours int `yaml:"ttlHours"`
	} `yaml:"session"`
}

// Load reads the configuration. An empty path skips the file and uses
// defaults; a named file must exist and parse. Environment variables
// (CUBBY_PORT, CUBBY_DATA_DIR, CUBBY_DB_PATH) win over both.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CUBBY_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("CUBBY_DATA_DIR"); v != "" {
		cfg.Server.DataDir = v
	}
	if v := os.Getenv("CUBBY_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("CUBBY_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadMB = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = "data"
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = cfg.Server.DataDir + "/cubby.db"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 100
	}
	if cfg.Session.TTLHours == 0 {
		cfg.Session.TTLHours = 24
	}
}

func validate(cfg *Config) error {
	if cfg.Server.MaxUploadMB < 0 {
		return fmt.Errorf("maxUploadMB must be positive, got %d", cfg.Server.MaxUploadMB)
	}
	if cfg.Session.TTLHours < 0 {
		return fmt.Errorf("session ttlHours must be positive, got %d", cfg.Session.TTLHours)
	}
	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", cfg.Server.DataDir, err)
	}
	return nil
}
