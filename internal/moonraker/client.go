// Package moonraker implements a best-effort HTTP client for the Moonraker
// printer status API. Requests use short timeouts, a one-step URL scheme
// fallback (http<->https), and last-known-good caching so brief printer
// hiccups don't blank the dashboard.
package moonraker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultAPIURL is the built-in fallback Moonraker objects query endpoint.
const DefaultAPIURL = "http://192.168.1.226:7125/printer/objects/query"

// DefaultAPIPort is the standard Moonraker API TCP port.
const DefaultAPIPort = 7125

const requestTimeout = 2 * time.Second

// Logger is the minimal logger the moonraker package uses.
type Logger interface {
	Error(msg string, context ...interface{})
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}

var log Logger

// SetLogger allows the application to inject a structured logger.
func SetLogger(l Logger) {
	log = l
}

func logError(msg string, context ...interface{}) {
	if log != nil {
		log.Error(msg, context...)
	}
}

func logWarn(msg string, context ...interface{}) {
	if log != nil {
		log.Warn(msg, context...)
	}
}

func logInfo(msg string, context ...interface{}) {
	if log != nil {
		log.Info(msg, context...)
	}
}

// SensorReading is one sensor's reported attributes. Missing attributes are
// reported as "N/A" so the UI never renders holes.
type SensorReading map[string]interface{}

// Temperatures maps display names to sensor readings.
type Temperatures map[string]SensorReading

// Progress is the state of the current print job.
type Progress struct {
	ProgressPercentage float64 `json:"progress_percentage"`
	FilePath           string  `json:"file_path"`
	IsActive           bool    `json:"is_active"`
	FilePosition       int64   `json:"file_position"`
	FileSize           int64   `json:"file_size"`
}

// Fan is the part cooling fan state as a percentage (0-100).
type Fan struct {
	FanSpeed float64 `json:"fan_speed"`
}

// Client fetches printer data from the Moonraker objects query endpoint.
type Client struct {
	apiURL     string
	httpClient *http.Client

	mu         sync.Mutex
	workingURL string // last URL that answered successfully

	// Last-known-good values so brief Moonraker hiccups don't blank the UI.
	lastTemperatures Temperatures
	lastProgress     Progress
	lastFan          Fan

	// Standard heater/fan sensors and the attributes queried for each.
	temperatureSensors map[string][]string
	// Named temperature_sensor objects queried for temperature only.
	sensorVariables []string
}

// NewClient creates a client for the given Moonraker objects query URL.
func NewClient(apiURL string) *Client {
	return &Client{
		apiURL:     apiURL,
		workingURL: apiURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				// Moonraker is often served with a self-signed certificate;
				// verification is skipped for https candidates.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		lastTemperatures: Temperatures{},
		lastProgress:     Progress{FilePath: "N/A"},
		lastFan:          Fan{},
		temperatureSensors: map[string][]string{
			"extruder":                 {"temperature", "target"},
			"heater_bed":               {"temperature", "target"},
			"temperature_fan MCU_Fans": {"temperature"},
		},
		sensorVariables: []string{"CHAMBER", "Internals", "NucBox", "NH36", "Cartographer"},
	}
}

// APIURL returns the configured (not necessarily working) API URL.
func (c *Client) APIURL() string {
	return c.apiURL
}

// Host returns a friendly host:port string for the configured URL, falling
// back to the raw URL when it cannot be parsed.
func (c *Client) Host() string {
	parsed, err := url.Parse(c.apiURL)
	if err != nil || parsed.Hostname() == "" {
		return c.apiURL
	}
	host := parsed.Hostname()
	if parsed.Port() != "" {
		host = host + ":" + parsed.Port()
	}
	return host
}

// swapScheme returns the URL with http and https exchanged, or "" when the
// URL has a different scheme or cannot be parsed.
func swapScheme(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "http"
	case "http":
		parsed.Scheme = "https"
	default:
		return ""
	}
	return parsed.String()
}

// candidateURLs returns the request URLs to try, in order: the last known
// working URL, the configured URL, then scheme-swapped variants of each.
func (c *Client) candidateURLs() []string {
	c.mu.Lock()
	working := c.workingURL
	c.mu.Unlock()

	var urls []string
	for _, u := range []string{working, c.apiURL, swapScheme(working), swapScheme(c.apiURL)} {
		if u == "" {
			continue
		}
		seen := false
		for _, v := range urls {
			if v == u {
				seen = true
				break
			}
		}
		if !seen {
			urls = append(urls, u)
		}
	}
	return urls
}

// objectsQuery is the request payload for /printer/objects/query.
type objectsQuery struct {
	Objects map[string][]string `json:"objects"`
}

// queryResult is the subset of the Moonraker response we care about.
type queryResult struct {
	Result struct {
		Status map[string]map[string]interface{} `json:"status"`
	} `json:"result"`
}

// post sends the objects query to the first candidate URL that answers.
// On success the working URL is remembered so subsequent requests don't pay
// the retry cost.
func (c *Client) post(ctx context.Context, payload objectsQuery) (*queryResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	var tried []string
	var lastErr error

	for _, u := range c.candidateURLs() {
		tried = append(tried, u)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			lastErr = fmt.Errorf("moonraker returned status %d", resp.StatusCode)
			continue
		}

		var result queryResult
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			continue
		}

		c.mu.Lock()
		c.workingURL = u
		c.mu.Unlock()
		return &result, nil
	}

	logError(fmt.Sprintf("Moonraker request failed (configured=%s, tried=%s): %v",
		c.apiURL, strings.Join(tried, ", "), lastErr))
	return nil, fmt.Errorf("all moonraker candidates failed: %w", lastErr)
}

// FetchTemperatures fetches temperature data from all sensors. On failure the
// last successfully fetched values are returned.
func (c *Client) FetchTemperatures(ctx context.Context) Temperatures {
	temperatures := Temperatures{}

	// Standard sensors first
	standard, err := c.post(ctx, objectsQuery{Objects: c.temperatureSensors})
	if err != nil {
		return c.lastKnownTemperatures()
	}

	for sensor, attributes := range c.temperatureSensors {
		sensorData := standard.Result.Status[sensor]
		reading := SensorReading{}
		for _, attr := range attributes {
			if v, ok := sensorData[attr]; ok && v != nil {
				reading[attr] = v
			} else {
				reading[attr] = "N/A"
			}
		}
		temperatures[displayName(sensor)] = reading
	}

	// Named temperature_sensor variables
	variables := map[string][]string{}
	for _, sensor := range c.sensorVariables {
		variables["temperature_sensor "+sensor] = []string{"temperature"}
	}
	varResult, err := c.post(ctx, objectsQuery{Objects: variables})
	if err != nil {
		// Keep the standard temps we already have if the variable query fails
		c.mu.Lock()
		if len(temperatures) > 0 {
			c.lastTemperatures = temperatures
		}
		out := c.lastTemperatures
		c.mu.Unlock()
		return out
	}

	for _, sensor := range c.sensorVariables {
		key := "temperature_sensor " + sensor
		reading := SensorReading{"temperature": "N/A", "target": "N/A"}
		if data, ok := varResult.Result.Status[key]; ok {
			if v, ok := data["temperature"]; ok && v != nil {
				reading["temperature"] = v
			}
		}
		temperatures[sensor] = reading
	}

	c.mu.Lock()
	c.lastTemperatures = temperatures
	c.mu.Unlock()
	return temperatures
}

func (c *Client) lastKnownTemperatures() Temperatures {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTemperatures
}

// FetchProgress fetches print job progress data. On failure the last
// successfully fetched values are returned.
func (c *Client) FetchProgress(ctx context.Context) Progress {
	query := objectsQuery{Objects: map[string][]string{
		"virtual_sdcard": {"file_path", "progress", "is_active", "file_position", "file_size"},
	}}
	result, err := c.post(ctx, query)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.lastProgress
	}

	data := result.Result.Status["virtual_sdcard"]
	progress := Progress{
		ProgressPercentage: round1(asFloat(data["progress"]) * 100),
		FilePath:           asString(data["file_path"], "N/A"),
		IsActive:           asBool(data["is_active"]),
		FilePosition:       int64(asFloat(data["file_position"])),
		FileSize:           int64(asFloat(data["file_size"])),
	}

	c.mu.Lock()
	c.lastProgress = progress
	c.mu.Unlock()
	return progress
}

// FetchFan fetches the part cooling fan speed as a percentage (0-100). On
// failure the last successfully fetched value is returned.
func (c *Client) FetchFan(ctx context.Context) Fan {
	query := objectsQuery{Objects: map[string][]string{"fan": {"speed"}}}
	result, err := c.post(ctx, query)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.lastFan
	}

	fan := Fan{FanSpeed: round1(asFloat(result.Result.Status["fan"]["speed"]) * 100)}

	c.mu.Lock()
	c.lastFan = fan
	c.mu.Unlock()
	return fan
}

// displayName maps raw Klipper object names to UI labels.
func displayName(sensor string) string {
	if sensor == "temperature_fan MCU_Fans" {
		return "MCU"
	}
	return titleCase(strings.ReplaceAll(sensor, "_", " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asString(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
