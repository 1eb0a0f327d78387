package ws

import (
	"encoding/json"
	"time"
)

// Message is the WebSocket message shape used by the launcher web UI stream.
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}

// Marshal marshals the message to JSON bytes.
func (m *Message) Marshal() ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return json.Marshal(m)
}

// Standard message type constants used by the launcher and its web UI
const (
	MessageTypeHeartbeat  = "heartbeat"
	MessageTypeError      = "error"
	MessageTypeLogLine    = "log_line"    // child process output line
	MessageTypeToolStatus = "tool_status" // tool lifecycle state change
	MessageTypeLogEntry   = "log_entry"   // launcher's own structured log entry
)
