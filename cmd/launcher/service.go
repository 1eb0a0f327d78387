package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kardianos/service"

	"github.com/oernster/printer-launcher/internal/util"
)

// program implements service.Interface
type program struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("Printer Launcher service starting")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)
	runInteractive(p.ctx, "launcher.toml")
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}

	select {
	case <-p.done:
		if p.svcLogger != nil {
			p.svcLogger.Info("Printer Launcher service stopped gracefully")
		}
	case <-time.After(30 * time.Second):
		if p.svcLogger != nil {
			p.svcLogger.Warning("Printer Launcher service stopped with timeout")
		}
	}
	return nil
}

// getServiceConfig returns the service configuration for the current platform
func getServiceConfig() *service.Config {
	var workingDir string
	switch runtime.GOOS {
	case "windows":
		workingDir = filepath.Join(os.Getenv("ProgramData"), "PrinterLauncher")
	case "darwin":
		workingDir = "/Library/Application Support/PrinterLauncher"
	default:
		workingDir = "/var/lib/printer-launcher"
	}

	return &service.Config{
		Name:             "PrinterLauncher",
		DisplayName:      "Printer Launcher",
		Description:      "Supervises 3D printer helper tools: temperature dashboards and remote maintenance commands.",
		WorkingDirectory: workingDir,
		Arguments:        []string{"--service", "run"},
		Option: service.KeyValue{
			// Windows service options
			"StartType":              "automatic",
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",
			"OnFailureResetPeriod":   30,

			// Linux systemd options
			"Restart":           "on-failure",
			"RestartSec":        5,
			"SuccessExitStatus": "0 SIGTERM",
			"KillMode":          "mixed",
			"KillSignal":        "SIGTERM",
			"SendSIGKILL":       true,

			// macOS launchd options
			"RunAtLoad":     true,
			"KeepAlive":     true,
			"SessionCreate": false,
		},
	}
}

// setupServiceDirectories creates necessary directories for service operation
func setupServiceDirectories() error {
	var dirs []string

	switch runtime.GOOS {
	case "windows":
		baseDir := filepath.Join(os.Getenv("ProgramData"), "PrinterLauncher")
		dirs = []string{
			baseDir,
			filepath.Join(baseDir, "launcher"),
			filepath.Join(baseDir, "launcher", "logs"),
		}
	case "darwin":
		baseDir := "/Library/Application Support/PrinterLauncher"
		dirs = []string{
			baseDir,
			filepath.Join(baseDir, "logs"),
			"/var/log/printer-launcher",
		}
	default: // Linux
		dirs = []string{
			"/var/lib/printer-launcher",
			"/var/log/printer-launcher",
			"/etc/printer-launcher",
		}
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// handleServiceCommand processes service install/uninstall/start/stop commands
func handleServiceCommand(cmd string) {
	svcConfig := getServiceConfig()
	prg := &program{}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create service: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "install":
		util.ShowBanner(Version, "3D Printer Tool Launcher")

		status, _ := s.Status()
		if status != service.StatusUnknown {
			util.ShowWarning("Service already exists, removing first...")
			if status == service.StatusRunning {
				_ = s.Stop()
				time.Sleep(2 * time.Second)
			}
			if err := s.Uninstall(); err != nil && !strings.Contains(err.Error(), "marked for deletion") {
				util.ShowError(fmt.Sprintf("Failed to remove existing service: %v", err))
				os.Exit(1)
			}
		}

		util.ShowInfo("Setting up directories...")
		if err := setupServiceDirectories(); err != nil {
			util.ShowError(fmt.Sprintf("Failed to setup service directories: %v", err))
			os.Exit(1)
		}

		if err := s.Install(); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				util.ShowWarning("Service already exists (this is normal)")
			} else {
				util.ShowError(fmt.Sprintf("Failed to install service: %v", err))
				os.Exit(1)
			}
		}
		util.ShowSuccess("Service installed")
		util.ShowInfo("Use '--service start' to start the service")

	case "uninstall":
		if err := s.Uninstall(); err != nil {
			util.ShowError(fmt.Sprintf("Failed to uninstall service: %v", err))
			os.Exit(1)
		}
		util.ShowSuccess("Printer Launcher service uninstalled")

	case "start":
		if err := s.Start(); err != nil {
			util.ShowError(fmt.Sprintf("Failed to start service: %v", err))
			os.Exit(1)
		}
		util.ShowSuccess("Service started")

	case "stop":
		if err := s.Stop(); err != nil {
			util.ShowError(fmt.Sprintf("Failed to stop service: %v", err))
			os.Exit(1)
		}
		util.ShowSuccess("Service stopped")

	case "restart":
		if err := s.Restart(); err != nil {
			util.ShowError(fmt.Sprintf("Failed to restart service: %v", err))
			os.Exit(1)
		}
		util.ShowSuccess("Service restarted")

	case "status":
		status, err := s.Status()
		if err != nil {
			util.ShowError(fmt.Sprintf("Failed to query service status: %v", err))
			os.Exit(1)
		}
		switch status {
		case service.StatusRunning:
			util.ShowSuccess("Service is running")
		case service.StatusStopped:
			util.ShowInfo("Service is stopped")
		default:
			util.ShowWarning("Service status unknown (is it installed?)")
		}

	case "run":
		runAsService()

	default:
		fmt.Fprintf(os.Stderr, "Unknown service command: %s\n", cmd)
		fmt.Println("Valid commands: install, uninstall, start, stop, restart, status, run")
		os.Exit(1)
	}
}

// runAsService starts the launcher under service manager control
func runAsService() {
	svcConfig := getServiceConfig()
	prg := &program{}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		os.Exit(1)
	}
	if err := s.Run(); err != nil {
		os.Exit(1)
	}
}
