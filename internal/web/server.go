package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/ws"
)

//go:embed web
var webFS embed.FS

// Server ties the launcher API, the web UI and the websocket hub into one
// HTTP server.
type Server struct {
	api        *API
	hub        *ws.Hub
	log        *logger.Logger
	httpServer *http.Server
}

// NewServer creates the launcher web server bound to addr.
func NewServer(addr string, api *API, hub *ws.Hub, log *logger.Logger) *Server {
	server := &Server{api: api, hub: hub, log: log}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	mux.HandleFunc("/ws", server.handleWebSocket)
	mux.HandleFunc("/static/", server.handleStatic)
	mux.HandleFunc("/", server.handleIndex)

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// Handler returns the root HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	if s.log != nil {
		s.log.Info("Web UI listening", "addr", s.httpServer.Addr)
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// BroadcastToolStatus pushes a tool state transition to all websocket clients.
func (s *Server) BroadcastToolStatus(toolID, status string) {
	s.broadcast(ws.Message{
		Type: ws.MessageTypeToolStatus,
		Data: map[string]interface{}{"tool_id": toolID, "status": status},
	})
}

// BroadcastToolLog pushes captured tool output to all websocket clients.
func (s *Server) BroadcastToolLog(toolID, text string) {
	s.broadcast(ws.Message{
		Type: ws.MessageTypeLogLine,
		Data: map[string]interface{}{"tool_id": toolID, "text": text},
	})
}

// BroadcastLogEntry pushes a launcher log entry to all websocket clients.
func (s *Server) BroadcastLogEntry(entry logger.LogEntry) {
	s.broadcast(ws.Message{
		Type: ws.MessageTypeLogEntry,
		Data: map[string]interface{}{
			"timestamp": entry.Timestamp.Format(time.RFC3339),
			"level":     logger.LevelToString(entry.Level),
			"message":   entry.Message,
			"context":   entry.Context,
		},
	})
}

func (s *Server) broadcast(message ws.Message) {
	s.hub.Broadcast(message)
}

// handleWebSocket upgrades the connection and registers it with the hub.
// The client only listens; inbound messages are drained for control frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.UpgradeHTTP(w, r)
	if err != nil {
		if s.log != nil {
			s.log.Warn("WebSocket upgrade failed", "error", err.Error())
		}
		return
	}
	defer conn.Close()

	id := fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano())
	messages := make(chan ws.Message, 10)
	s.hub.Register(id, messages)
	defer s.hub.Unregister(id)

	go func() {
		for msg := range messages {
			msg := msg
			if err := conn.WriteMessage(&msg, 10*time.Second); err != nil {
				return
			}
		}
	}()

	for {
		if _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "only GET allowed", http.StatusMethodNotAllowed)
		return
	}
	tmpl, err := template.ParseFS(webFS, "web/index.html")
	if err != nil {
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tmpl.Execute(w, map[string]string{"Version": s.api.version})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	fileName := strings.TrimPrefix(r.URL.Path, "/static/")
	content, err := webFS.ReadFile("web/" + fileName)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	switch {
	case strings.HasSuffix(fileName, ".css"):
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	case strings.HasSuffix(fileName, ".js"):
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	}
	w.Write(content)
}
