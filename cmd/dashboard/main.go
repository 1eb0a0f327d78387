// The dashboard binary serves one printer's temperature/progress web page,
// polling a Moonraker instance. The launcher runs one of these per printer,
// each on its own port.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/oernster/printer-launcher/internal/config"
	"github.com/oernster/printer-launcher/internal/dashboard"
	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/moonraker"
	"github.com/oernster/printer-launcher/internal/util"
)

// Build information, set at link time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	moonrakerURL := flag.String("moonraker-url", "", "Full Moonraker API URL, e.g. http://printer-host:7125/printer/objects/query. If omitted, MOONRAKER_API_URL, the config file, or a built-in default is used.")
	host := flag.String("host", "", "Host interface for the web server (default from config: 127.0.0.1)")
	port := flag.Int("port", 0, "Port for the web server (default from config: 5000)")
	configPath := flag.String("config", "dashboard.toml", "Configuration file path")
	generateConfig := flag.Bool("generate-config", false, "Generate default config file and exit")
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
		fmt.Printf("Printer Dashboard %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return
	}

	if *generateConfig {
		if err := config.WriteDefaultDashboardConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default configuration at %s\n", *configPath)
		return
	}

	logDir, err := config.GetLogDirectory("dashboard", false)
	if err != nil {
		logDir = "logs"
	}
	os.MkdirAll(logDir, 0o755)
	appLogger := logger.New(logger.INFO, logDir, "dashboard", 500)
	defer appLogger.Close()
	appLogger.SetConsoleOutput(!util.IsQuietMode())
	moonraker.SetLogger(appLogger)

	cfg := loadConfig(*configPath, appLogger)
	appLogger.SetLevel(logger.LevelFromString(cfg.Logging.Level))

	apiURL := dashboard.ResolveAPIURL(*moonrakerURL, cfg.MoonrakerURL)
	appLogger.Info("Using Moonraker API URL", "url", apiURL)

	client := moonraker.NewClient(apiURL)

	// Diagnostics only: an unreachable printer must never stop the local UI
	// from binding its port.
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	if !moonraker.Probe(probeCtx, apiURL) {
		appLogger.Warn("Moonraker appears unreachable, dashboard will still start", "url", apiURL)
		util.ShowWarning(fmt.Sprintf("Moonraker at %s appears unreachable", apiURL))
	} else {
		client.CheckVersion(probeCtx)
	}
	cancelProbe()

	bindHost := cfg.Web.BindAddress
	if *host != "" {
		bindHost = *host
	}
	bindPort := cfg.Web.HTTPPort
	if *port != 0 {
		bindPort = *port
	}
	addr := fmt.Sprintf("%s:%d", bindHost, bindPort)

	server := dashboard.NewServer(client, appLogger)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	appLogger.Info("Dashboard listening", "addr", addr, "label", server.Label())
	util.ShowSuccess(fmt.Sprintf("%s dashboard on http://%s", server.Label(), addr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("Dashboard server failed", "error", err.Error())
			util.ShowError(fmt.Sprintf("Dashboard server failed: %v", err))
			os.Exit(1)
		}
	case s := <-sig:
		appLogger.Info("Shutdown signal received", "signal", s.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}
}

// loadConfig resolves the dashboard configuration: explicit flag first, then
// the platform search paths, then built-in defaults.
func loadConfig(configFlag string, appLogger *logger.Logger) *config.DashboardConfig {
	if _, err := os.Stat(configFlag); err == nil {
		if cfg, err := config.LoadDashboardConfig(configFlag); err == nil {
			appLogger.Info("Loaded configuration", "path", configFlag)
			return cfg
		} else {
			appLogger.Warn("Config file found but failed to parse", "path", configFlag, "error", err.Error())
		}
	}

	if path, _, err := config.FindConfigFile("dashboard.toml", "dashboard"); err == nil {
		if cfg, err := config.LoadDashboardConfig(path); err == nil {
			appLogger.Info("Loaded configuration", "path", path)
			return cfg
		}
	}

	cfg := config.DefaultDashboardConfig()
	config.ApplyDashboardEnvOverrides(cfg)
	return cfg
}
