package dashboard

import (
	"os"
	"strings"

	"github.com/oernster/printer-launcher/internal/moonraker"
)

// ResolveAPIURL determines the Moonraker objects query URL for this
// dashboard instance. Precedence, first non-empty wins:
//
//  1. Explicit --moonraker-url flag
//  2. MOONRAKER_API_URL environment variable (set by the launcher)
//  3. Configured URL from the dashboard config file
//  4. Built-in default
func ResolveAPIURL(flagValue, configValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("MOONRAKER_API_URL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(configValue); v != "" {
		return v
	}
	return moonraker.DefaultAPIURL
}
