package config

import (
	"os"
	"strconv"
)

// DashboardConfig represents the per-printer dashboard configuration
type DashboardConfig struct {
	MoonrakerURL string        `toml:"moonraker_url"`
	Web          WebConfig     `toml:"web"`
	Logging      LoggingConfig `toml:"logging"`
}

// DefaultDashboardConfig returns dashboard configuration with sensible defaults
func DefaultDashboardConfig() *DashboardConfig {
	return &DashboardConfig{
		MoonrakerURL: "", // resolved at startup: flag > env > config > default
		Web: WebConfig{
			BindAddress: "127.0.0.1",
			HTTPPort:    5000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadDashboardConfig loads configuration from a TOML file with environment
// variable overrides. Returns an error if the config file does not exist or
// cannot be parsed.
func LoadDashboardConfig(configPath string) (*DashboardConfig, error) {
	cfg := DefaultDashboardConfig()

	if _, err := os.Stat(configPath); err != nil {
		return nil, err
	}
	if err := LoadTOML(configPath, cfg); err != nil {
		return nil, err
	}

	ApplyDashboardEnvOverrides(cfg)
	return cfg, nil
}

// ApplyDashboardEnvOverrides applies environment variable overrides to cfg.
// MOONRAKER_API_URL is intentionally not handled here: its precedence over
// the config file is resolved by the dashboard itself.
func ApplyDashboardEnvOverrides(cfg *DashboardConfig) {
	if val := os.Getenv("DASHBOARD_BIND_ADDRESS"); val != "" {
		cfg.Web.BindAddress = val
	}
	if val := os.Getenv("DASHBOARD_HTTP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Web.HTTPPort = port
		}
	}
	ApplyLoggingEnvOverrides(&cfg.Logging)
}

// WriteDefaultDashboardConfig writes a default dashboard configuration file
func WriteDefaultDashboardConfig(configPath string) error {
	return WriteTOML(configPath, DefaultDashboardConfig())
}
