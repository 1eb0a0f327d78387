// Package util provides terminal output helpers shared by the launcher
// binaries: a startup banner plus quiet/silent-aware status messages.
package util

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Global quiet and silent mode flags
var quietMode bool
var silentMode bool

// SetQuietMode enables or disables quiet mode for all terminal output
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// SetSilentMode enables or disables silent mode (suppresses ALL output including errors)
func SetSilentMode(silent bool) {
	silentMode = silent
	if silent {
		quietMode = true // Silent mode implies quiet mode
	}
}

// IsQuietMode returns true if quiet mode is enabled
func IsQuietMode() bool {
	return quietMode
}

// IsSilentMode returns true if silent mode is enabled
func IsSilentMode() bool {
	return silentMode
}

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

const asciiArt = `
  ┌──────────────────────────────────────────────────────────────┐
  │   _     ___  _   _ _   _  ____ _   _ _____ ____              │
  │  | |   / _ \| | | | \ | |/ ___| | | | ____|  _ \             │
  │  | |  | |_| | | | |  \| | |   | |_| |  _| | |_) |            │
  │  | |__|  _  | |_| | |\  | |___|  _  | |___|  _ <             │
  │  |_____|_| |_|\___/|_| \_|\____|_| |_|_____|_| \_\           │
  │                                3D printer tool launcher      │
  └──────────────────────────────────────────────────────────────┘
`

// ShowBanner displays the launcher banner with version and system info.
func ShowBanner(version, componentName string) {
	if quietMode {
		return
	}
	fmt.Print(ColorCyan + asciiArt + ColorReset)
	fmt.Println()
	hostname, _ := os.Hostname()
	centerPrint(fmt.Sprintf("%s%s%s", ColorBold, componentName, ColorReset))
	centerPrint(fmt.Sprintf("Version %s%s%s | %s/%s | %sHost:%s %s",
		ColorGreen, version, ColorReset,
		runtime.GOOS, runtime.GOARCH,
		ColorDim, ColorReset, hostname))
	fmt.Println()
}

func centerPrint(text string) {
	const width = 66
	visible := len(stripColors(text))
	pad := 0
	if visible < width {
		pad = (width - visible) / 2
	}
	fmt.Println(strings.Repeat(" ", pad) + text)
}

func stripColors(s string) string {
	for _, color := range []string{ColorReset, ColorRed, ColorGreen, ColorYellow,
		ColorBlue, ColorCyan, ColorWhite, ColorBold, ColorDim} {
		s = strings.ReplaceAll(s, color, "")
	}
	return s
}

// ClearLine clears the current line
func ClearLine() {
	if quietMode {
		return
	}
	fmt.Print("\r" + strings.Repeat(" ", 100) + "\r")
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	if silentMode {
		return
	}
	if quietMode {
		logLine("INFO", ColorBlue, message)
		return
	}
	ClearLine()
	fmt.Printf("  %s✓%s %s\n", ColorGreen, ColorReset, message)
}

// ShowError displays an error message. Errors are shown even in quiet mode.
func ShowError(message string) {
	if silentMode {
		return
	}
	if quietMode {
		logLine("ERROR", ColorRed, message)
		return
	}
	ClearLine()
	fmt.Printf("  %s✗%s %s\n", ColorRed, ColorReset, message)
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	if silentMode {
		return
	}
	if quietMode {
		logLine("INFO", ColorBlue, message)
		return
	}
	ClearLine()
	fmt.Printf("  %s•%s %s\n", ColorCyan, ColorReset, message)
}

// ShowWarning displays a warning message. Warnings are shown even in quiet mode.
func ShowWarning(message string) {
	if silentMode {
		return
	}
	if quietMode {
		logLine("WARN", ColorYellow, message)
		return
	}
	ClearLine()
	fmt.Printf("  %s⚠%s %s\n", ColorYellow, ColorReset, message)
}

func logLine(level, color, message string) {
	timestamp := time.Now().Format(time.RFC3339)
	fmt.Printf("%s%s%s %s[%s]%s %s\n", ColorDim, timestamp, ColorReset, color, level, ColorReset, message)
}
