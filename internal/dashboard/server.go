// Package dashboard serves the per-printer temperature dashboard UI. Each
// instance binds its own local port and polls one Moonraker backend.
package dashboard

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"strings"

	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/moonraker"
)

//go:embed web
var webFS embed.FS

// Server is the HTTP surface for one printer dashboard.
type Server struct {
	client *moonraker.Client
	label  string
	log    *logger.Logger
}

// NewServer creates a dashboard server for the given Moonraker client. The
// printer label comes from LAUNCHER_TOOL_LABEL when the launcher spawned us.
func NewServer(client *moonraker.Client, log *logger.Logger) *Server {
	label := strings.TrimSpace(os.Getenv("LAUNCHER_TOOL_LABEL"))
	if label == "" {
		label = "Printer"
	}
	return &Server{client: client, label: label, log: log}
}

// Label returns the display name for this dashboard instance.
func (s *Server) Label() string { return s.label }

// Routes returns the dashboard HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/temperatures", s.handleTemperatures)
	mux.HandleFunc("/progress", s.handleProgress)
	mux.HandleFunc("/fan", s.handleFan)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// handleIndex serves the page shell. It deliberately does no Moonraker I/O:
// the frontend polls /temperatures, /fan and /progress itself, so an
// unreachable printer must not slow the initial render.
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
	tmpl.Execute(w, map[string]string{
		"PrinterLabel":  s.label,
		"MoonrakerHost": s.client.Host(),
	})
}

func (s *Server) handleTemperatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.client.FetchTemperatures(r.Context()))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.client.FetchProgress(r.Context()))
}

func (s *Server) handleFan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.client.FetchFan(r.Context()))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":    "ok",
		"label":     s.label,
		"moonraker": s.client.APIURL(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
