package moonraker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeMoonraker serves canned /printer/objects/query responses in the shape
// Moonraker returns.
func fakeMoonraker(t *testing.T, status map[string]map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var query struct {
			Objects map[string][]string `json:"objects"`
		}
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		// Return only the requested objects, like Moonraker does
		result := map[string]map[string]interface{}{}
		for name := range query.Objects {
			if data, ok := status[name]; ok {
				result[name] = data
			}
		}
		resp := map[string]interface{}{
			"result": map[string]interface{}{"status": result},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func printerStatus() map[string]map[string]interface{} {
	return map[string]map[string]interface{}{
		"extruder":                   {"temperature": 215.3, "target": 220.0},
		"heater_bed":                 {"temperature": 60.1, "target": 60.0},
		"temperature_fan MCU_Fans":   {"temperature": 42.5},
		"temperature_sensor CHAMBER": {"temperature": 35.2},
		"virtual_sdcard": {
			"file_path":     "/prints/benchy.gcode",
			"progress":      0.421,
			"is_active":     true,
			"file_position": float64(1024),
			"file_size":     float64(4096),
		},
		"fan": {"speed": 0.755},
	}
}

func TestFetchTemperatures(t *testing.T) {
	t.Parallel()

	server := fakeMoonraker(t, printerStatus())
	defer server.Close()

	client := NewClient(server.URL + "/printer/objects/query")
	temps := client.FetchTemperatures(context.Background())

	extruder, ok := temps["Extruder"]
	if !ok {
		t.Fatalf("missing Extruder reading: %v", temps)
	}
	if extruder["temperature"] != 215.3 || extruder["target"] != 220.0 {
		t.Errorf("unexpected extruder reading: %v", extruder)
	}

	if _, ok := temps["Heater Bed"]; !ok {
		t.Errorf("heater_bed should be shown as 'Heater Bed': %v", temps)
	}

	mcu, ok := temps["MCU"]
	if !ok {
		t.Fatalf("temperature_fan MCU_Fans should be shown as 'MCU': %v", temps)
	}
	if mcu["temperature"] != 42.5 {
		t.Errorf("unexpected MCU reading: %v", mcu)
	}
	if _, ok := mcu["target"]; ok {
		t.Errorf("MCU reading should not have a target attribute: %v", mcu)
	}

	chamber, ok := temps["CHAMBER"]
	if !ok {
		t.Fatalf("missing CHAMBER variable sensor: %v", temps)
	}
	if chamber["temperature"] != 35.2 || chamber["target"] != "N/A" {
		t.Errorf("unexpected CHAMBER reading: %v", chamber)
	}

	// Sensors the printer doesn't report come back as N/A, not missing
	nucbox, ok := temps["NucBox"]
	if !ok {
		t.Fatalf("missing NucBox placeholder: %v", temps)
	}
	if nucbox["temperature"] != "N/A" {
		t.Errorf("unreported sensor should read N/A: %v", nucbox)
	}
}

func TestFetchProgress(t *testing.T) {
	t.Parallel()

	server := fakeMoonraker(t, printerStatus())
	defer server.Close()

	client := NewClient(server.URL + "/printer/objects/query")
	progress := client.FetchProgress(context.Background())

	if progress.ProgressPercentage != 42.1 {
		t.Errorf("expected 42.1%%, got %v", progress.ProgressPercentage)
	}
	if progress.FilePath != "/prints/benchy.gcode" {
		t.Errorf("unexpected file path: %s", progress.FilePath)
	}
	if !progress.IsActive {
		t.Error("expected active print")
	}
	if progress.FilePosition != 1024 || progress.FileSize != 4096 {
		t.Errorf("unexpected positions: %+v", progress)
	}
}

func TestFetchFan(t *testing.T) {
	t.Parallel()

	server := fakeMoonraker(t, printerStatus())
	defer server.Close()

	client := NewClient(server.URL + "/printer/objects/query")
	fan := client.FetchFan(context.Background())

	if fan.FanSpeed != 75.5 {
		t.Errorf("expected fan speed 75.5, got %v", fan.FanSpeed)
	}
}

func TestLastKnownGoodOnFailure(t *testing.T) {
	t.Parallel()

	server := fakeMoonraker(t, printerStatus())
	client := NewClient(server.URL + "/printer/objects/query")
	ctx := context.Background()

	// Prime the caches
	if temps := client.FetchTemperatures(ctx); len(temps) == 0 {
		t.Fatal("expected initial temperatures")
	}
	progress := client.FetchProgress(ctx)
	fan := client.FetchFan(ctx)

	// Kill the printer
	server.Close()

	temps := client.FetchTemperatures(ctx)
	if temps["Extruder"]["temperature"] != 215.3 {
		t.Errorf("expected cached extruder temperature, got %v", temps["Extruder"])
	}
	if got := client.FetchProgress(ctx); got != progress {
		t.Errorf("expected cached progress %+v, got %+v", progress, got)
	}
	if got := client.FetchFan(ctx); got != fan {
		t.Errorf("expected cached fan %+v, got %+v", fan, got)
	}
}

func TestFetchBeforeAnySuccess(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:1/printer/objects/query")
	ctx := context.Background()

	temps := client.FetchTemperatures(ctx)
	if len(temps) != 0 {
		t.Errorf("expected empty temperatures before any success, got %v", temps)
	}
	progress := client.FetchProgress(ctx)
	if progress.FilePath != "N/A" || progress.ProgressPercentage != 0 {
		t.Errorf("unexpected zero-state progress: %+v", progress)
	}
	fan := client.FetchFan(ctx)
	if fan.FanSpeed != 0 {
		t.Errorf("unexpected zero-state fan: %+v", fan)
	}
}

func TestSchemeFallback(t *testing.T) {
	t.Parallel()

	server := fakeMoonraker(t, printerStatus())
	defer server.Close()

	// Misconfigured with https for an http-only Moonraker; the candidate
	// list must fall back to the scheme-swapped variant.
	badURL := strings.Replace(server.URL, "http://", "https://", 1) + "/printer/objects/query"
	client := NewClient(badURL)

	fan := client.FetchFan(context.Background())
	if fan.FanSpeed != 75.5 {
		t.Fatalf("scheme fallback did not reach the printer: %+v", fan)
	}

	// The working URL is remembered and tried first afterwards
	candidates := client.candidateURLs()
	if !strings.HasPrefix(candidates[0], "http://") {
		t.Errorf("expected working http URL first, got %v", candidates)
	}
}

func TestCandidateURLOrder(t *testing.T) {
	t.Parallel()

	client := NewClient("http://printer:7125/printer/objects/query")
	urls := client.candidateURLs()

	want := []string{
		"http://printer:7125/printer/objects/query",
		"https://printer:7125/printer/objects/query",
	}
	if len(urls) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("candidate %d: got %s, want %s", i, urls[i], want[i])
		}
	}
}

func TestSwapScheme(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://h:7125/q":  "https://h:7125/q",
		"https://h:7125/q": "http://h:7125/q",
		"ftp://h/q":        "",
	}
	for in, want := range cases {
		if got := swapScheme(in); got != want {
			t.Errorf("swapScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHost(t *testing.T) {
	t.Parallel()

	client := NewClient("http://192.168.1.226:7125/printer/objects/query")
	if got := client.Host(); got != "192.168.1.226:7125" {
		t.Errorf("Host() = %q", got)
	}

	client = NewClient("/just/a/path")
	if got := client.Host(); got != "/just/a/path" {
		t.Errorf("hostless URL should be returned verbatim, got %q", got)
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	server := fakeMoonraker(t, printerStatus())
	if !Probe(context.Background(), server.URL+"/printer/objects/query") {
		t.Error("probe against a live server should succeed")
	}
	server.Close()

	if Probe(context.Background(), server.URL+"/printer/objects/query") {
		t.Error("probe against a dead server should fail")
	}
}

func TestVersionTooOld(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"v0.7.1":              true,
		"0.8.0":               false,
		"v0.8.0-143-ge1f8d37": false,
		"0.9.3":               false,
		"custom-build":        false,
	}
	for in, want := range cases {
		if got := VersionTooOld(in); got != want {
			t.Errorf("VersionTooOld(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestServerVersion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/printer/info" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"software_version": "v0.8.0-143-ge1f8d37",
				"hostname":         "voron",
				"state":            "ready",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL + "/printer/objects/query")
	version, err := client.ServerVersion(context.Background())
	if err != nil {
		t.Fatalf("ServerVersion() failed: %v", err)
	}
	if version != "v0.8.0-143-ge1f8d37" {
		t.Errorf("unexpected version %q", version)
	}
}
