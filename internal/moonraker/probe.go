package moonraker

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

const probeTimeout = 5 * time.Second

// Probe performs a best-effort connectivity check against the Moonraker API.
// It runs once at startup for diagnostics only: any 2xx/3xx response counts as
// reachable, and a pure timeout is treated as a soft pass so transient network
// issues never stop the dashboard from binding its port.
func Probe(ctx context.Context, apiURL string) bool {
	client := &http.Client{
		Timeout: probeTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL,
		bytes.NewReader([]byte(`{"objects":{}}`)))
	if err != nil {
		logError(fmt.Sprintf("Moonraker probe failed for %s: %v", apiURL, err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			logWarn(fmt.Sprintf("Moonraker probe timeout for %s: %v - allowing dashboard to start", apiURL, err))
			return true
		}
		logError(fmt.Sprintf("Moonraker probe failed for %s: %v", apiURL, err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return true
	}
	logError(fmt.Sprintf("Moonraker probe failed for %s: status %d", apiURL, resp.StatusCode))
	return false
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}
