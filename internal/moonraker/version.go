package moonraker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MinimumVersion is the oldest Moonraker release the dashboard queries are
// known to work against.
const MinimumVersion = "0.8.0"

type printerInfo struct {
	Result struct {
		SoftwareVersion string `json:"software_version"`
		Hostname        string `json:"hostname"`
		State           string `json:"state"`
	} `json:"result"`
}

// ServerVersion queries /printer/info on the configured host and returns the
// reported Moonraker software version string.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	parsed, err := url.Parse(c.apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	infoURL := parsed.Scheme + "://" + parsed.Host + "/printer/info"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("printer info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("printer info returned status %d", resp.StatusCode)
	}

	var info printerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode printer info: %w", err)
	}
	return info.Result.SoftwareVersion, nil
}

// CheckVersion fetches the Moonraker version and logs a warning when it is
// older than MinimumVersion. Unparseable versions (custom builds) are only
// logged, never fatal.
func (c *Client) CheckVersion(ctx context.Context) {
	version, err := c.ServerVersion(ctx)
	if err != nil {
		logWarn("Could not determine Moonraker version", "error", err.Error())
		return
	}

	if VersionTooOld(version) {
		logWarn("Moonraker version is older than the minimum supported release",
			"version", version, "minimum", MinimumVersion)
		return
	}
	logInfo("Moonraker version", "version", version)
}

// VersionTooOld reports whether the given Moonraker version string parses as
// a semantic version older than MinimumVersion. Unparseable strings report
// false: custom builds are assumed current.
func VersionTooOld(version string) bool {
	trimmed := strings.TrimPrefix(strings.TrimSpace(version), "v")
	parsed, err := semver.NewVersion(trimmed)
	if err != nil {
		return false
	}
	minimum := semver.MustParse(MinimumVersion)
	// Compare release numbers only; Moonraker appends git metadata as a
	// prerelease suffix (e.g. 0.8.0-143-ge1f8d37) which would otherwise sort
	// before the bare minimum version.
	release, err := parsed.SetPrerelease("")
	if err != nil {
		return parsed.LessThan(minimum)
	}
	return release.LessThan(minimum)
}
