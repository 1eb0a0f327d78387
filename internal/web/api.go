// Package web exposes the launcher's HTTP API and web UI: tool CRUD,
// process control, event history, printer discovery and live log streaming.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/oernster/printer-launcher/internal/discovery"
	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/storage"
	"github.com/oernster/printer-launcher/internal/supervisor"
)

// DiscoverFunc scans for Moonraker instances. Swappable in tests.
type DiscoverFunc func(ctx context.Context, timeout time.Duration, log *logger.Logger) ([]discovery.Printer, error)

// APIOptions configures the launcher API.
type APIOptions struct {
	Store            storage.ToolStore
	Supervisor       *supervisor.Supervisor
	Log              *logger.Logger
	Version          string
	DiscoveryTimeout time.Duration
	Discover         DiscoverFunc
}

// API exposes the launcher HTTP handlers.
type API struct {
	store            storage.ToolStore
	supervisor       *supervisor.Supervisor
	log              *logger.Logger
	version          string
	processStart     time.Time
	discoveryTimeout time.Duration
	discover         DiscoverFunc
}

// NewAPI builds the launcher API. Store and Supervisor are required.
func NewAPI(opts APIOptions) (*API, error) {
	if opts.Store == nil {
		return nil, errors.New("launcher API requires a store")
	}
	if opts.Supervisor == nil {
		return nil, errors.New("launcher API requires a supervisor")
	}
	if opts.Discover == nil {
		opts.Discover = discovery.Browse
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = 5 * time.Second
	}
	return &API{
		store:            opts.Store,
		supervisor:       opts.Supervisor,
		log:              opts.Log,
		version:          opts.Version,
		processStart:     time.Now(),
		discoveryTimeout: opts.DiscoveryTimeout,
		discover:         opts.Discover,
	}, nil
}

// RegisterRoutes registers all API routes on the mux.
func (api *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/tools", api.handleTools)
	mux.HandleFunc("/api/v1/tools/", api.handleToolByID)
	mux.HandleFunc("/api/v1/events", api.handleEvents)
	mux.HandleFunc("/api/v1/discover", api.handleDiscover)
	mux.HandleFunc("/api/v1/log", api.handleLauncherLog)
	mux.HandleFunc("/healthz", api.handleHealthz)
}

// toolView is a tool plus its live process state.
type toolView struct {
	*storage.Tool
	Status string `json:"status"`
}

// handleTools handles GET (list) and POST (create) on /api/v1/tools.
func (api *API) handleTools(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tools, err := api.store.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		views := make([]toolView, 0, len(tools))
		for _, tool := range tools {
			views = append(views, toolView{Tool: tool, Status: api.supervisor.Status(tool.ID)})
		}
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var tool storage.Tool
		if err := json.NewDecoder(r.Body).Decode(&tool); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if tool.Kind == "" {
			tool.Kind = storage.KindNormal
		}
		if err := api.store.Create(r.Context(), &tool); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toolView{Tool: &tool, Status: supervisor.StatusStopped})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleToolByID routes /api/v1/tools/{id}[/{action}].
func (api *API) handleToolByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tools/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "tool id required")
		return
	}

	// Collection-level actions share the /tools/ prefix
	if len(parts) == 1 {
		switch id {
		case "start-all":
			api.handleStartAll(w, r)
			return
		case "stop-all":
			api.handleStopAll(w, r)
			return
		}
		api.handleToolEntity(w, r, id)
		return
	}

	switch parts[1] {
	case "start":
		api.handleStart(w, r, id)
	case "stop":
		api.handleStop(w, r, id)
	case "log":
		api.handleToolLog(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (api *API) handleToolEntity(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		tool, err := api.store.Get(r.Context(), id)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toolView{Tool: tool, Status: api.supervisor.Status(id)})

	case http.MethodPut:
		if supervisor.IsActive(api.supervisor.Status(id)) {
			writeError(w, http.StatusConflict, "stop the tool before editing it")
			return
		}
		var tool storage.Tool
		if err := json.NewDecoder(r.Body).Decode(&tool); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		tool.ID = id
		if tool.Kind == "" {
			tool.Kind = storage.KindNormal
		}
		if err := api.store.Update(r.Context(), &tool); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toolView{Tool: &tool, Status: api.supervisor.Status(id)})

	case http.MethodDelete:
		if supervisor.IsActive(api.supervisor.Status(id)) {
			writeError(w, http.StatusConflict, "stop the tool before deleting it")
			return
		}
		if err := api.store.Delete(r.Context(), id); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (api *API) handleStart(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := api.supervisor.Start(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, supervisor.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": api.supervisor.Status(id)})
}

func (api *API) handleStop(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := api.supervisor.Stop(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, supervisor.ErrNotRunning):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": api.supervisor.Status(id)})
}

func (api *API) handleStartAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	started, failed := api.supervisor.StartAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"started": started, "failed": failed})
}

func (api *API) handleStopAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stopped := api.supervisor.StopAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"stopped": stopped})
}

// handleToolLog returns the tail of a tool's log file as plain text.
// ?lines=N limits the tail (default 200).
func (api *API) handleToolLog(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, err := api.store.Get(r.Context(), id); err != nil {
		writeStorageError(w, err)
		return
	}

	lines := 200
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		lines = n
	}

	data, err := os.ReadFile(api.supervisor.LogPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(tailLines(string(data), lines)))
}

// handleEvents returns recent process lifecycle events, newest first.
func (api *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := api.store.ListEvents(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleDiscover scans the local network for Moonraker instances.
func (api *API) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	printers, err := api.discover(r.Context(), api.discoveryTimeout, api.log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if printers == nil {
		printers = []discovery.Printer{}
	}
	writeJSON(w, http.StatusOK, printers)
}

// handleLauncherLog returns the launcher's own in-memory log buffer.
func (api *API) handleLauncherLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if api.log == nil {
		writeJSON(w, http.StatusOK, []logger.LogEntry{})
		return
	}
	writeJSON(w, http.StatusOK, api.log.GetBuffer())
}

func (api *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    api.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     time.Since(api.processStart).Round(time.Second).String(),
	})
}

// tailLines returns the last n lines of text.
func tailLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n") + "\n"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrInvalidTool):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
