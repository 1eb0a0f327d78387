package config

import (
	"os"
	"strconv"
	"strings"
)

// LauncherConfig represents the launcher daemon configuration
type LauncherConfig struct {
	ToolsDir  string          `toml:"tools_dir"` // base directory for relative tool commands
	Web       WebConfig       `toml:"web"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
}

// WebConfig holds web UI settings
type WebConfig struct {
	BindAddress string `toml:"bind_address"`
	HTTPPort    int    `toml:"http_port"`
}

// DiscoveryConfig controls mDNS discovery of Moonraker printers
type DiscoveryConfig struct {
	Enabled        bool `toml:"enabled"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

// DefaultLauncherConfig returns launcher configuration with sensible defaults
func DefaultLauncherConfig() *LauncherConfig {
	return &LauncherConfig{
		ToolsDir: "",
		Web: WebConfig{
			BindAddress: "127.0.0.1",
			HTTPPort:    8080,
		},
		Discovery: DiscoveryConfig{
			Enabled:        true,
			TimeoutSeconds: 5,
		},
		Database: DatabaseConfig{
			Path: "", // Will use default platform-specific path
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadLauncherConfig loads configuration from a TOML file with environment
// variable overrides. Returns an error if the config file does not exist or
// cannot be parsed.
func LoadLauncherConfig(configPath string) (*LauncherConfig, error) {
	cfg := DefaultLauncherConfig()

	// File must exist - return error if missing
	if _, err := os.Stat(configPath); err != nil {
		return nil, err
	}
	if err := LoadTOML(configPath, cfg); err != nil {
		return nil, err
	}

	ApplyLauncherEnvOverrides(cfg)
	return cfg, nil
}

// ApplyLauncherEnvOverrides applies environment variable overrides to cfg
func ApplyLauncherEnvOverrides(cfg *LauncherConfig) {
	if val := os.Getenv("LAUNCHER_TOOLS_DIR"); val != "" {
		cfg.ToolsDir = val
	}
	if val := os.Getenv("LAUNCHER_BIND_ADDRESS"); val != "" {
		cfg.Web.BindAddress = val
	}
	if val := os.Getenv("LAUNCHER_HTTP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Web.HTTPPort = port
		}
	}
	if val := os.Getenv("LAUNCHER_DISCOVERY_ENABLED"); val != "" {
		lower := strings.ToLower(val)
		cfg.Discovery.Enabled = (lower == "1" || lower == "true" || lower == "yes")
	}
	ApplyDatabaseEnvOverrides(&cfg.Database)
	ApplyLoggingEnvOverrides(&cfg.Logging)
}

// WriteDefaultLauncherConfig writes a default launcher configuration file
func WriteDefaultLauncherConfig(configPath string) error {
	return WriteTOML(configPath, DefaultLauncherConfig())
}
