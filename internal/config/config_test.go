package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfig is a simple config structure for round-trip tests
type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func TestWriteAndLoadTOML(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.toml")

	in := testConfig{Name: "test", Value: 42}
	if err := WriteTOML(configPath, in); err != nil {
		t.Fatalf("WriteTOML() failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if !strings.Contains(string(content), "name = \"test\"") {
		t.Error("config file missing expected name value")
	}

	var out testConfig
	if err := LoadTOML(configPath, &out); err != nil {
		t.Fatalf("LoadTOML() failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestLoadTOMLMissingFile(t *testing.T) {
	t.Parallel()

	var out testConfig
	err := LoadTOML(filepath.Join(t.TempDir(), "nope.toml"), &out)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Parallel()

	paths := GetConfigSearchPaths("launcher.toml", "launcher")
	if len(paths) < 3 {
		t.Fatalf("expected at least 3 search paths, got %d", len(paths))
	}

	// Current working directory is always the lowest priority
	last := paths[len(paths)-1]
	if last != filepath.Join(".", "launcher.toml") {
		t.Errorf("expected cwd as last search path, got %s", last)
	}

	for _, p := range paths {
		if !strings.HasSuffix(p, "launcher.toml") {
			t.Errorf("search path %s does not end with the filename", p)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	prevWD, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(prevWD) })

	if _, _, err := FindConfigFile("launcher.toml", "launcher"); err == nil {
		t.Fatal("expected error when config file does not exist anywhere")
	}

	if err := os.WriteFile("launcher.toml", []byte("tools_dir = \"/opt/tools\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	path, data, err := FindConfigFile("launcher.toml", "launcher")
	if err != nil {
		t.Fatalf("FindConfigFile() failed: %v", err)
	}
	if !strings.Contains(string(data), "tools_dir") {
		t.Errorf("unexpected config data: %s", data)
	}
	if filepath.Base(path) != "launcher.toml" {
		t.Errorf("unexpected config path: %s", path)
	}
}

func TestDefaultLauncherConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLauncherConfig()
	if cfg.Web.HTTPPort != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.Web.HTTPPort)
	}
	if cfg.Web.BindAddress != "127.0.0.1" {
		t.Errorf("expected default bind address 127.0.0.1, got %s", cfg.Web.BindAddress)
	}
	if !cfg.Discovery.Enabled {
		t.Error("expected discovery enabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadLauncherConfigEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "launcher.toml")

	if err := WriteDefaultLauncherConfig(configPath); err != nil {
		t.Fatalf("WriteDefaultLauncherConfig() failed: %v", err)
	}

	t.Setenv("LAUNCHER_HTTP_PORT", "9090")
	t.Setenv("LAUNCHER_DISCOVERY_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadLauncherConfig(configPath)
	if err != nil {
		t.Fatalf("LoadLauncherConfig() failed: %v", err)
	}
	if cfg.Web.HTTPPort != 9090 {
		t.Errorf("expected env override port 9090, got %d", cfg.Web.HTTPPort)
	}
	if cfg.Discovery.Enabled {
		t.Error("expected discovery disabled via env override")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadLauncherConfigMissing(t *testing.T) {
	t.Parallel()

	if _, err := LoadLauncherConfig(filepath.Join(t.TempDir(), "launcher.toml")); err == nil {
		t.Fatal("expected error for missing launcher config")
	}
}

func TestDefaultDashboardConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultDashboardConfig()
	if cfg.Web.HTTPPort != 5000 {
		t.Errorf("expected default HTTP port 5000, got %d", cfg.Web.HTTPPort)
	}
	if cfg.MoonrakerURL != "" {
		t.Errorf("expected empty default moonraker URL, got %s", cfg.MoonrakerURL)
	}
}

func TestLoadDashboardConfigEnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dashboard.toml")
	if err := WriteDefaultDashboardConfig(configPath); err != nil {
		t.Fatalf("WriteDefaultDashboardConfig() failed: %v", err)
	}

	t.Setenv("DASHBOARD_HTTP_PORT", "5013")
	t.Setenv("DASHBOARD_BIND_ADDRESS", "0.0.0.0")

	cfg, err := LoadDashboardConfig(configPath)
	if err != nil {
		t.Fatalf("LoadDashboardConfig() failed: %v", err)
	}
	if cfg.Web.HTTPPort != 5013 {
		t.Errorf("expected env override port 5013, got %d", cfg.Web.HTTPPort)
	}
	if cfg.Web.BindAddress != "0.0.0.0" {
		t.Errorf("expected env override bind address, got %s", cfg.Web.BindAddress)
	}
}

func TestDefaultWebcamctlConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultWebcamctlConfig()
	if cfg.Host != "192.168.1.120" {
		t.Errorf("unexpected default host: %s", cfg.Host)
	}
	if cfg.Port != 22 {
		t.Errorf("unexpected default port: %d", cfg.Port)
	}
	if cfg.User != "root" {
		t.Errorf("unexpected default user: %s", cfg.User)
	}
	if cfg.Command != "sudo service webcamd restart" {
		t.Errorf("unexpected default command: %s", cfg.Command)
	}
	if cfg.CredentialsFile != "credentials.json" {
		t.Errorf("unexpected default credentials file: %s", cfg.CredentialsFile)
	}
}

func TestLoadWebcamctlConfigEnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "webcamctl.toml")
	if err := WriteDefaultWebcamctlConfig(configPath); err != nil {
		t.Fatalf("WriteDefaultWebcamctlConfig() failed: %v", err)
	}

	t.Setenv("WEBCAMCTL_HOST", "10.0.0.9")
	t.Setenv("WEBCAMCTL_PORT", "2222")
	t.Setenv("WEBCAMCTL_USER", "pi")

	cfg, err := LoadWebcamctlConfig(configPath)
	if err != nil {
		t.Fatalf("LoadWebcamctlConfig() failed: %v", err)
	}
	if cfg.Host != "10.0.0.9" || cfg.Port != 2222 || cfg.User != "pi" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}
