package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration. Every field can come from the
// optional YAML config file; environment variables override file values.
type Config struct {
	Port     string `yaml:"port"`
	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`
	// AutoMigrate runs goose migrations on startup.
	AutoMigrate bool `yaml:"auto_migrate"`
	// CronInterval is integer seconds or a cron expression for the
	// snapshot worker.
	CronInterval string `yaml:"cron_interval"`
}

func defaults() Config {
	return Config{
		Port:         "8000",
		DBDriver:     "sqlite",
		DBDSN:        "enerbill.db",
		CronInterval: "3600",
	}
}

// Load builds the configuration from the optional file at ENERBILL_CONFIG
// and the ENERBILL_* environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("ENERBILL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("ENERBILL_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("ENERBILL_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("ENERBILL_AUTO_MIGRATE"); v == "1" || v == "true" || v == "yes" {
		cfg.AutoMigrate = true
	}
	if v := os.Getenv("ENERBILL_CRON_INTERVAL"); v != "" {
		cfg.CronInterval = v
	}

	return cfg, nil
}
