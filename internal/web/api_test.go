package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oernster/printer-launcher/internal/discovery"
	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/storage"
	"github.com/oernster/printer-launcher/internal/supervisor"
	"github.com/oernster/printer-launcher/internal/ws"
)

type testEnv struct {
	store *storage.SQLiteStore
	sup   *supervisor.Supervisor
	ts    *httptest.Server
}

func newTestEnv(t *testing.T, discover DiscoverFunc) *testEnv {
	t.Helper()

	store, err := storage.NewSQLiteStore("")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sup := supervisor.New(store, "", t.TempDir(), nil)
	api, err := NewAPI(APIOptions{
		Store:      store,
		Supervisor: sup,
		Version:    "test",
		Discover:   discover,
	})
	if err != nil {
		t.Fatalf("NewAPI failed: %v", err)
	}

	server := NewServer("127.0.0.1:0", api, ws.NewHub(nil), nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{store: store, sup: sup, ts: ts}
}

func noDiscovery(ctx context.Context, timeout time.Duration, log *logger.Logger) ([]discovery.Printer, error) {
	return nil, nil
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestToolCRUD(t *testing.T) {
	env := newTestEnv(t, noDiscovery)

	tool := storage.Tool{
		ID:           "voron-temps",
		Label:        "Voron Temps",
		Command:      "dashboard",
		Kind:         storage.KindNormal,
		Enabled:      true,
		MoonrakerURL: "http://192.168.1.226:7125/printer/objects/query",
	}

	resp, body := env.request(t, http.MethodPost, "/api/v1/tools", tool)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create returned %d: %s", resp.StatusCode, body)
	}

	// Duplicate id conflicts
	resp, _ = env.request(t, http.MethodPost, "/api/v1/tools", tool)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create returned %d, want 409", resp.StatusCode)
	}

	// Invalid tool rejected
	resp, _ = env.request(t, http.MethodPost, "/api/v1/tools", storage.Tool{ID: "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid create returned %d, want 400", resp.StatusCode)
	}

	resp, body = env.request(t, http.MethodGet, "/api/v1/tools", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list returned %d", resp.StatusCode)
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 1 || list[0]["id"] != "voron-temps" || list[0]["status"] != "stopped" {
		t.Errorf("unexpected list payload: %s", body)
	}

	resp, body = env.request(t, http.MethodGet, "/api/v1/tools/voron-temps", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Voron Temps") {
		t.Errorf("get returned %d: %s", resp.StatusCode, body)
	}

	tool.Label = "Voron 2.4 Temps"
	resp, _ = env.request(t, http.MethodPut, "/api/v1/tools/voron-temps", tool)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update returned %d", resp.StatusCode)
	}

	resp, _ = env.request(t, http.MethodDelete, "/api/v1/tools/voron-temps", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete returned %d", resp.StatusCode)
	}
	resp, _ = env.request(t, http.MethodGet, "/api/v1/tools/voron-temps", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete returned %d, want 404", resp.StatusCode)
	}
}

func TestStartStopErrors(t *testing.T) {
	env := newTestEnv(t, noDiscovery)

	resp, _ := env.request(t, http.MethodPost, "/api/v1/tools/ghost/start", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("start of unknown tool returned %d, want 404", resp.StatusCode)
	}
	resp, _ = env.request(t, http.MethodPost, "/api/v1/tools/ghost/stop", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("stop of unknown tool returned %d, want 404", resp.StatusCode)
	}

	tool := storage.Tool{ID: "idle", Label: "Idle", Command: "dashboard", Kind: storage.KindNormal}
	if err := env.store.Create(context.Background(), &tool); err != nil {
		t.Fatal(err)
	}
	resp, _ = env.request(t, http.MethodPost, "/api/v1/tools/idle/stop", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stop of idle tool returned %d, want 409", resp.StatusCode)
	}

	// GET on an action endpoint is not allowed
	resp, _ = env.request(t, http.MethodGet, "/api/v1/tools/idle/start", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET start returned %d, want 405", resp.StatusCode)
	}
}

func TestStartStopOverHTTP(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test helper script requires a POSIX shell")
	}
	env := newTestEnv(t, noDiscovery)

	dir := t.TempDir()
	script := filepath.Join(dir, "sleeper")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 60\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	tool := storage.Tool{ID: "sleeper", Label: "Sleeper", Command: script, Kind: storage.KindNormal, Enabled: true}
	if err := env.store.Create(context.Background(), &tool); err != nil {
		t.Fatal(err)
	}

	resp, body := env.request(t, http.MethodPost, "/api/v1/tools/sleeper/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start returned %d: %s", resp.StatusCode, body)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/v1/tools/sleeper/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start returned %d, want 409", resp.StatusCode)
	}

	// Running tools cannot be edited or deleted
	resp, _ = env.request(t, http.MethodPut, "/api/v1/tools/sleeper", tool)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("update of running tool returned %d, want 409", resp.StatusCode)
	}
	resp, _ = env.request(t, http.MethodDelete, "/api/v1/tools/sleeper", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("delete of running tool returned %d, want 409", resp.StatusCode)
	}

	resp, body = env.request(t, http.MethodPost, "/api/v1/tools/sleeper/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop returned %d: %s", resp.StatusCode, body)
	}

	// Log tail includes the lifecycle banners
	resp, body = env.request(t, http.MethodGet, "/api/v1/tools/sleeper/log?lines=50", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("log returned %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "START ====") {
		t.Errorf("log tail missing start banner: %s", body)
	}

	// Events were recorded
	resp, body = env.request(t, http.MethodGet, "/api/v1/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events returned %d", resp.StatusCode)
	}
	var events []map[string]interface{}
	if err := json.Unmarshal(body, &events); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(events) < 2 {
		t.Errorf("expected start and stop events, got %s", body)
	}
}

func TestFailedStartLeavesToolEditable(t *testing.T) {
	env := newTestEnv(t, noDiscovery)

	tool := storage.Tool{
		ID:      "mistyped",
		Label:   "Mistyped",
		Command: "/does/not/exist/anywhere",
		Kind:    storage.KindNormal,
		Enabled: true,
	}
	resp, _ := env.request(t, http.MethodPost, "/api/v1/tools", tool)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create returned %d", resp.StatusCode)
	}

	resp, body := env.request(t, http.MethodPost, "/api/v1/tools/mistyped/start", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("start of a bad command returned %d: %s", resp.StatusCode, body)
	}

	resp, body = env.request(t, http.MethodGet, "/api/v1/tools/mistyped", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get returned %d", resp.StatusCode)
	}
	var view struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("failed to decode tool view: %v", err)
	}
	if view.Status != supervisor.StatusError {
		t.Errorf("expected status error after failed start, got %q", view.Status)
	}

	// No process is alive, so the tool must stay editable and deletable
	tool.Command = "dashboard"
	resp, body = env.request(t, http.MethodPut, "/api/v1/tools/mistyped", tool)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update after failed start returned %d: %s", resp.StatusCode, body)
	}
	resp, body = env.request(t, http.MethodDelete, "/api/v1/tools/mistyped", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete after failed start returned %d: %s", resp.StatusCode, body)
	}
}

func TestCreateDefaultsKind(t *testing.T) {
	env := newTestEnv(t, noDiscovery)

	resp, body := env.request(t, http.MethodPost, "/api/v1/tools", map[string]interface{}{
		"id":      "plain",
		"label":   "Plain",
		"command": "dashboard",
		"enabled": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create without kind returned %d: %s", resp.StatusCode, body)
	}
	var created storage.Tool
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("failed to decode created tool: %v", err)
	}
	if created.Kind != storage.KindNormal {
		t.Errorf("expected kind to default to %q, got %q", storage.KindNormal, created.Kind)
	}
}

func TestStartAllStopAllEndpoints(t *testing.T) {
	env := newTestEnv(t, noDiscovery)

	resp, body := env.request(t, http.MethodPost, "/api/v1/tools/start-all", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start-all returned %d", resp.StatusCode)
	}
	var result map[string]int
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode start-all result: %v", err)
	}
	if result["started"] != 0 || result["failed"] != 0 {
		t.Errorf("unexpected start-all result: %v", result)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/v1/tools/stop-all", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop-all returned %d", resp.StatusCode)
	}

	resp, _ = env.request(t, http.MethodGet, "/api/v1/tools/start-all", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET start-all returned %d, want 405", resp.StatusCode)
	}
}

func TestDiscoverEndpoint(t *testing.T) {
	printers := []discovery.Printer{{
		Name:    "voron",
		Address: "192.168.1.226",
		Port:    7125,
		APIURL:  "http://192.168.1.226:7125/printer/objects/query",
	}}
	env := newTestEnv(t, func(ctx context.Context, timeout time.Duration, log *logger.Logger) ([]discovery.Printer, error) {
		return printers, nil
	})

	resp, body := env.request(t, http.MethodPost, "/api/v1/discover", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("discover returned %d", resp.StatusCode)
	}
	var got []discovery.Printer
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode discover response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "voron" {
		t.Errorf("unexpected discover payload: %s", body)
	}

	// Empty result is an empty array, not null
	env2 := newTestEnv(t, noDiscovery)
	_, body = env2.request(t, http.MethodPost, "/api/v1/discover", nil)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty discovery should return [], got %s", body)
	}
}

func TestDiscoverError(t *testing.T) {
	env := newTestEnv(t, func(ctx context.Context, timeout time.Duration, log *logger.Logger) ([]discovery.Printer, error) {
		return nil, fmt.Errorf("network down")
	})
	resp, body := env.request(t, http.MethodPost, "/api/v1/discover", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("discover error returned %d: %s", resp.StatusCode, body)
	}
}

func TestHealthzAndIndex(t *testing.T) {
	env := newTestEnv(t, noDiscovery)

	resp, body := env.request(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz returned %d", resp.StatusCode)
	}
	var health map[string]interface{}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("failed to decode healthz: %v", err)
	}
	if health["status"] != "ok" || health["version"] != "test" {
		t.Errorf("unexpected healthz payload: %s", body)
	}

	resp, body = env.request(t, http.MethodGet, "/", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Printer Launcher") {
		t.Errorf("index returned %d: %s", resp.StatusCode, body[:min(len(body), 200)])
	}

	resp, _ = env.request(t, http.MethodGet, "/no-such-page", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path returned %d, want 404", resp.StatusCode)
	}
}

func TestLauncherLogEndpoint(t *testing.T) {
	env := newTestEnv(t, noDiscovery)

	resp, body := env.request(t, http.MethodGet, "/api/v1/log", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("log returned %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("nil logger should return [], got %s", body)
	}
}

func TestTailLines(t *testing.T) {
	t.Parallel()

	text := "one\ntwo\nthree\nfour\n"
	if got := tailLines(text, 2); got != "three\nfour\n" {
		t.Errorf("tailLines(2) = %q", got)
	}
	if got := tailLines(text, 10); got != text {
		t.Errorf("tailLines(10) = %q", got)
	}
}
