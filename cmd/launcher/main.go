// The launcher daemon supervises per-printer helper tools (temperature
// dashboards, one-shot fleet chores) and serves the web UI that replaces
// the old desktop launcher window.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/kardianos/service"

	"github.com/oernster/printer-launcher/internal/config"
	"github.com/oernster/printer-launcher/internal/discovery"
	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/moonraker"
	"github.com/oernster/printer-launcher/internal/storage"
	"github.com/oernster/printer-launcher/internal/supervisor"
	"github.com/oernster/printer-launcher/internal/util"
	"github.com/oernster/printer-launcher/internal/web"
	"github.com/oernster/printer-launcher/internal/ws"
)

// Build information, set at link time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "launcher.toml", "Configuration file path")
	generateConfig := flag.Bool("generate-config", false, "Generate default config file and exit")
	serviceCmd := flag.String("service", "", "Service control: install, uninstall, start, stop, run")
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
		fmt.Printf("Printer Launcher %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return
	}

	if *generateConfig {
		if err := config.WriteDefaultLauncherConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default configuration at %s\n", *configPath)
		return
	}

	if *serviceCmd != "" {
		handleServiceCommand(*serviceCmd)
		return
	}

	if !service.Interactive() {
		runAsService()
		return
	}

	runInteractive(context.Background(), *configPath)
}

// runInteractive starts the launcher in foreground mode. ctx is cancelled by
// the service wrapper on service stop; interactively it runs until a signal.
func runInteractive(ctx context.Context, configFlag string) {
	isService := !service.Interactive()

	logDir, err := config.GetLogDirectory("launcher", isService)
	if err != nil {
		logDir = "logs"
	}
	os.MkdirAll(logDir, 0o755)

	appLogger := logger.New(logger.INFO, logDir, "launcher", 1000)
	defer appLogger.Close()

	cfg := loadConfig(configFlag, appLogger)
	appLogger.SetLevel(logger.LevelFromString(cfg.Logging.Level))

	util.ShowBanner(Version, "3D Printer Tool Launcher")
	appLogger.Info("Printer launcher starting",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit)

	storage.SetLogger(appLogger)
	moonraker.SetLogger(appLogger)

	dataDir, err := config.GetDataDirectory("launcher", isService)
	if err != nil {
		dataDir = "."
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "launcher.db")
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		appLogger.Error("Failed to open tool database", "path", dbPath, "error", err.Error())
		util.ShowError(fmt.Sprintf("Failed to open tool database: %v", err))
		os.Exit(1)
	}
	defer store.Close()

	// One-time import of the old desktop launcher's tool list
	importLegacyTools(ctx, store, appLogger)

	if seeded, err := store.SeedDefaults(ctx); err != nil {
		appLogger.Warn("Failed to seed default tools", "error", err.Error())
	} else if seeded > 0 {
		appLogger.Info("Seeded default tools", "count", seeded)
	}

	toolLogDir := filepath.Join(logDir, "tools")
	sup := supervisor.New(store, cfg.ToolsDir, toolLogDir, appLogger)

	hub := ws.NewHub(appLogger)
	defer hub.Stop()

	discover := web.DiscoverFunc(discovery.Browse)
	if !cfg.Discovery.Enabled {
		discover = func(ctx context.Context, timeout time.Duration, log *logger.Logger) ([]discovery.Printer, error) {
			return nil, nil
		}
	}

	api, err := web.NewAPI(web.APIOptions{
		Store:            store,
		Supervisor:       sup,
		Log:              appLogger,
		Version:          Version,
		DiscoveryTimeout: time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second,
		Discover:         discover,
	})
	if err != nil {
		appLogger.Error("Failed to build API", "error", err.Error())
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Web.BindAddress, cfg.Web.HTTPPort)
	server := web.NewServer(addr, api, hub, appLogger)

	// Live streams to the web UI
	sup.SetStatusSink(server.BroadcastToolStatus)
	sup.SetLogSink(server.BroadcastToolLog)
	appLogger.SetOnLogCallback(server.BroadcastLogEntry)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.ListenAndServe() }()
	util.ShowSuccess(fmt.Sprintf("Web UI listening on http://%s", addr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		appLogger.Info("Shutdown requested by service manager")
	case s := <-sig:
		appLogger.Info("Shutdown signal received", "signal", s.String())
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("Web server failed", "error", err.Error())
			util.ShowError(fmt.Sprintf("Web server failed: %v", err))
			os.Exit(1)
		}
		return
	}

	util.ShowInfo("Stopping tools...")
	if stopped := sup.StopAll(context.Background()); stopped > 0 {
		appLogger.Info("Stopped running tools", "count", stopped)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Web server shutdown error", "error", err.Error())
	}
	util.ShowSuccess("Launcher stopped")
}

// loadConfig resolves the launcher configuration: explicit flag first, then
// the platform search paths, then built-in defaults.
func loadConfig(configFlag string, appLogger *logger.Logger) *config.LauncherConfig {
	if _, err := os.Stat(configFlag); err == nil {
		if cfg, err := config.LoadLauncherConfig(configFlag); err == nil {
			appLogger.Info("Loaded configuration", "path", configFlag)
			return cfg
		} else {
			appLogger.Warn("Config file found but failed to parse", "path", configFlag, "error", err.Error())
		}
	}

	if path, _, err := config.FindConfigFile("launcher.toml", "launcher"); err == nil {
		if cfg, err := config.LoadLauncherConfig(path); err == nil {
			appLogger.Info("Loaded configuration", "path", path)
			return cfg
		}
	}

	appLogger.Warn("No launcher.toml found, using defaults")
	cfg := config.DefaultLauncherConfig()
	config.ApplyLauncherEnvOverrides(cfg)
	return cfg
}

// importLegacyTools migrates tools_config.json from the old desktop launcher
// if one sits next to the executable or in the working directory.
func importLegacyTools(ctx context.Context, store storage.ToolStore, appLogger *logger.Logger) {
	candidates := []string{
		filepath.Join(filepath.Dir(os.Args[0]), "tools_config.json"),
		"tools_config.json",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		imported, err := storage.ImportLegacyJSON(ctx, store, path)
		if err != nil {
			appLogger.Warn("Legacy tool import failed", "path", path, "error", err.Error())
			continue
		}
		if imported > 0 {
			appLogger.Info("Imported legacy tools", "path", path, "count", imported)
		}
		return
	}
}
