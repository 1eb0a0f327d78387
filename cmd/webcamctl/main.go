// webcamctl runs a single maintenance command on a printer SBC over SSH.
// Its default job is restarting webcamd on the Qidi printer host.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oernster/printer-launcher/internal/config"
	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/sshrun"
	"github.com/oernster/printer-launcher/internal/util"
)

// Build information, set at link time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	host := flag.String("host", "", "Remote host (default from config: "+sshrun.DefaultHost+")")
	port := flag.Int("port", 0, "SSH port (default from config: 22)")
	user := flag.String("user", "", "SSH user (default from config: "+sshrun.DefaultUser+")")
	command := flag.String("command", "", "Command to run (default from config: '"+sshrun.DefaultCommand+"')")
	credentials := flag.String("credentials", "", "Path to credentials.json (default: next to the executable)")
	configPath := flag.String("config", "webcamctl.toml", "Configuration file path")
	generateConfig := flag.Bool("generate-config", false, "Generate default config file and exit")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall timeout for the SSH command")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	quiet := flag.Bool("quiet", false, "Suppress informational output (errors/warnings still shown)")
	flag.BoolVar(quiet, "q", false, "Shorthand for --quiet")
	silent := flag.Bool("silent", false, "Suppress ALL output (complete silence)")
	flag.BoolVar(silent, "s", false, "Shorthand for --silent")
	flag.Parse()

	if *silent {
		util.SetSilentMode(true)
	} else {
		util.SetQuietMode(*quiet)
	}

	if *showVersion {
		fmt.Printf("webcamctl %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return
	}

	if *generateConfig {
		if err := config.WriteDefaultWebcamctlConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default configuration at %s\n", *configPath)
		return
	}

	logDir, err := config.GetLogDirectory("webcamctl", false)
	if err != nil {
		logDir = "logs"
	}
	os.MkdirAll(logDir, 0o755)
	appLogger := logger.New(logger.INFO, logDir, "webcamctl", 200)
	defer appLogger.Close()

	cfg := loadConfig(*configPath, appLogger)
	appLogger.SetLevel(logger.LevelFromString(cfg.Logging.Level))

	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *user != "" {
		cfg.User = *user
	}
	if *command != "" {
		cfg.Command = *command
	}

	password, err := sshrun.LoadPassword(resolveCredentialsPath(*credentials, cfg.CredentialsFile))
	if err != nil {
		appLogger.Error("Failed to load credentials", "error", err.Error())
		util.ShowError(err.Error())
		os.Exit(1)
	}

	runner := &sshrun.Runner{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: password,
	}

	appLogger.Info("Running remote command",
		"host", cfg.Host, "user", cfg.User, "command", cfg.Command)
	util.ShowInfo(fmt.Sprintf("Running %q on %s@%s", cfg.Command, cfg.User, cfg.Host))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	output, err := runner.Run(ctx, cfg.Command)
	if output != "" {
		fmt.Print(output)
		if !strings.HasSuffix(output, "\n") {
			fmt.Println()
		}
	}
	if err != nil {
		appLogger.Error("Remote command failed", "error", err.Error())
		util.ShowError(err.Error())
		// Mirror the remote command's exit status for scripting
		os.Exit(sshrun.ExitStatus(err))
	}

	appLogger.Info("Remote command succeeded", "host", cfg.Host)
	util.ShowSuccess("Done")
}

// resolveCredentialsPath picks the credentials file: flag first, then the
// config value (relative paths resolve next to the executable), then
// credentials.json beside the executable.
func resolveCredentialsPath(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	name := configValue
	if name == "" {
		name = "credentials.json"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(filepath.Dir(os.Args[0]), name)
}

// loadConfig resolves the webcamctl configuration: explicit flag first, then
// the platform search paths, then built-in defaults.
func loadConfig(configFlag string, appLogger *logger.Logger) *config.WebcamctlConfig {
	if _, err := os.Stat(configFlag); err == nil {
		if cfg, err := config.LoadWebcamctlConfig(configFlag); err == nil {
			appLogger.Info("Loaded configuration", "path", configFlag)
			return cfg
		} else {
			appLogger.Warn("Config file found but failed to parse", "path", configFlag, "error", err.Error())
		}
	}

	if path, _, err := config.FindConfigFile("webcamctl.toml", "webcamctl"); err == nil {
		if cfg, err := config.LoadWebcamctlConfig(path); err == nil {
			appLogger.Info("Loaded configuration", "path", path)
			return cfg
		}
	}

	cfg := config.DefaultWebcamctlConfig()
	config.ApplyWebcamctlEnvOverrides(cfg)
	return cfg
}
