package config

import (
	"os"
	"strconv"
)

// WebcamctlConfig represents the one-shot SSH command runner configuration
type WebcamctlConfig struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	User            string        `toml:"user"`
	Command         string        `toml:"command"`
	CredentialsFile string        `toml:"credentials_file"`
	Logging         LoggingConfig `toml:"logging"`
}

// DefaultWebcamctlConfig returns webcamctl configuration with the historical
// webcamd restart defaults.
func DefaultWebcamctlConfig() *WebcamctlConfig {
	return &WebcamctlConfig{
		Host:            "192.168.1.120",
		Port:            22,
		User:            "root",
		Command:         "sudo service webcamd restart",
		CredentialsFile: "credentials.json",
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadWebcamctlConfig loads configuration from a TOML file with environment
// variable overrides. Returns an error if the config file does not exist or
// cannot be parsed.
func LoadWebcamctlConfig(configPath string) (*WebcamctlConfig, error) {
	cfg := DefaultWebcamctlConfig()

	if _, err := os.Stat(configPath); err != nil {
		return nil, err
	}
	if err := LoadTOML(configPath, cfg); err != nil {
		return nil, err
	}

	ApplyWebcamctlEnvOverrides(cfg)
	return cfg, nil
}

// ApplyWebcamctlEnvOverrides applies environment variable overrides to cfg
func ApplyWebcamctlEnvOverrides(cfg *WebcamctlConfig) {
	if val := os.Getenv("WEBCAMCTL_HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("WEBCAMCTL_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Port = port
		}
	}
	if val := os.Getenv("WEBCAMCTL_USER"); val != "" {
		cfg.User = val
	}
	ApplyLoggingEnvOverrides(&cfg.Logging)
}

// WriteDefaultWebcamctlConfig writes a default webcamctl configuration file
func WriteDefaultWebcamctlConfig(configPath string) error {
	return WriteTOML(configPath, DefaultWebcamctlConfig())
}
