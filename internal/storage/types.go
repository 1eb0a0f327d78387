package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a tool doesn't exist
	ErrNotFound = errors.New("tool not found")
	// ErrDuplicate is returned when trying to create a tool that already exists
	ErrDuplicate = errors.New("tool already exists")
	// ErrInvalidTool is returned when a tool entry is missing required fields
	ErrInvalidTool = errors.New("invalid tool entry")
)

// Tool kinds. Oneshot tools run to completion and have no meaningful
// long-running state (e.g. the webcam restart helper).
const (
	KindNormal  = "normal"
	KindOneshot = "oneshot"
)

// Tool is the persistent configuration for one launcher tool/printer.
// This is intentionally a superset of what the supervisor needs so the
// web UI can drive special behaviour (e.g. one-shot tools) without
// hard-coding names.
type Tool struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Command string   `json:"command"` // executable, absolute or relative to the tools dir
	Args    []string `json:"args,omitempty"`
	Kind    string   `json:"kind"` // "normal" or "oneshot"
	Enabled bool     `json:"enabled"`

	// Optional Moonraker API URL for Klipper-based tools. When set, the
	// launcher exposes it to the child process via MOONRAKER_API_URL so a
	// single dashboard binary can target different printers.
	MoonrakerURL string `json:"moonraker_url,omitempty"`

	// Optional Moonraker API TCP port (default 7125). Stored separately so
	// the UI can show a simple "IP/host + port" model.
	MoonrakerAPIPort int `json:"moonraker_api_port,omitempty"`

	// Optional local dashboard port. When set, the launcher adds a
	// "--port" argument so multiple dashboards can run concurrently.
	DashboardPort int `json:"dashboard_port,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks that the required tool fields are present and the kind is known.
func (t *Tool) Validate() error {
	if t.ID == "" || t.Label == "" || t.Command == "" {
		return ErrInvalidTool
	}
	if t.Kind != KindNormal && t.Kind != KindOneshot {
		return ErrInvalidTool
	}
	return nil
}

// Process event types recorded for each supervised tool.
const (
	EventStart = "start"
	EventStop  = "stop"
	EventExit  = "exit"
	EventError = "error"
)

// ProcessEvent is one lifecycle event of a supervised tool process.
type ProcessEvent struct {
	ID        int64     `json:"id"`
	ToolID    string    `json:"tool_id"`
	Event     string    `json:"event"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultTools returns the built-in tool entries matching the historical
// hard-coded set. Users can modify these via the web UI afterwards.
func DefaultTools() []*Tool {
	return []*Tool{
		{
			ID:      "qidi-temps",
			Label:   "Qidi Temps",
			Command: "dashboard",
			Kind:    KindNormal,
			Enabled: true,
		},
		{
			ID:      "qidi-webcamd-restart",
			Label:   "Qidi Webcamd restart",
			Command: "webcamctl",
			Kind:    KindOneshot,
			Enabled: true,
		},
		{
			ID:      "voron-temps",
			Label:   "Voron Temps",
			Command: "dashboard",
			Kind:    KindNormal,
			Enabled: true,
		},
	}
}
