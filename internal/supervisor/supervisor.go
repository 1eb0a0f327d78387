package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/storage"
)

// Supervisor manages the runners for every registered tool and records
// process lifecycle events to the store.
type Supervisor struct {
	store    storage.ToolStore
	toolsDir string
	logDir   string
	log      *logger.Logger

	logSink    LogSink
	statusSink StatusSink

	mu      sync.Mutex
	runners map[string]*Runner
}

// New creates a supervisor. toolsDir is where relative tool commands are
// resolved, logDir is where per-tool log files are written.
func New(store storage.ToolStore, toolsDir, logDir string, log *logger.Logger) *Supervisor {
	return &Supervisor{
		store:    store,
		toolsDir: toolsDir,
		logDir:   logDir,
		log:      log,
		runners:  make(map[string]*Runner),
	}
}

// SetLogSink sets the callback for captured tool output. Call before Start.
func (s *Supervisor) SetLogSink(sink LogSink) { s.logSink = sink }

// SetStatusSink sets the callback for tool state transitions. Call before Start.
func (s *Supervisor) SetStatusSink(sink StatusSink) { s.statusSink = sink }

// Start launches the tool with the given id using its current stored
// configuration.
func (s *Supervisor) Start(ctx context.Context, id string) error {
	tool, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if existing, ok := s.runners[id]; ok && existing.Running() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	// A fresh runner each start picks up configuration edits
	runner := NewRunner(*tool, s.toolsDir, s.logDir, s.log)
	runner.SetLogSink(s.logSink)
	runner.SetStatusSink(s.statusSink)
	runner.SetOnExit(s.recordExit)
	s.runners[id] = runner
	s.mu.Unlock()

	if err := runner.Start(); err != nil {
		s.recordEvent(id, storage.EventError, nil, err.Error())
		return err
	}
	s.recordEvent(id, storage.EventStart, nil, "")
	return nil
}

// Stop shuts down the tool with the given id.
func (s *Supervisor) Stop(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	runner, ok := s.runners[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}

	if err := runner.Stop(); err != nil {
		return err
	}
	s.recordEvent(id, storage.EventStop, nil, "")
	return nil
}

// StartAll launches every enabled normal tool. One-shot tools are skipped:
// they are run on demand. Failures are logged and counted, not fatal.
func (s *Supervisor) StartAll(ctx context.Context) (started int, failed int) {
	tools, err := s.store.List(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Error("Failed to list tools for start-all", "error", err.Error())
		}
		return 0, 0
	}

	for _, tool := range tools {
		if !tool.Enabled || tool.Kind == storage.KindOneshot {
			continue
		}
		if err := s.Start(ctx, tool.ID); err != nil {
			if err == ErrAlreadyRunning {
				continue
			}
			failed++
			if s.log != nil {
				s.log.Warn("Failed to start tool", "tool", tool.ID, "error", err.Error())
			}
			continue
		}
		started++
	}
	return started, failed
}

// StopAll shuts down every running tool.
func (s *Supervisor) StopAll(ctx context.Context) (stopped int) {
	s.mu.Lock()
	var running []*Runner
	var ids []string
	for id, runner := range s.runners {
		if runner.Running() {
			running = append(running, runner)
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for i, runner := range running {
		if err := runner.Stop(); err != nil && err != ErrNotRunning {
			if s.log != nil {
				s.log.Warn("Failed to stop tool", "tool", ids[i], "error", err.Error())
			}
			continue
		}
		s.recordEvent(ids[i], storage.EventStop, nil, "")
		stopped++
	}
	return stopped
}

// Status returns the process state for one tool. Tools that were never
// started report as stopped.
func (s *Supervisor) Status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if runner, ok := s.runners[id]; ok {
		return runner.Status()
	}
	return StatusStopped
}

// Statuses returns the process state of every registered tool.
func (s *Supervisor) Statuses(ctx context.Context) (map[string]string, error) {
	tools, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	statuses := make(map[string]string, len(tools))
	for _, tool := range tools {
		statuses[tool.ID] = s.Status(tool.ID)
	}
	return statuses, nil
}

// LogPath returns the on-disk log file path for a tool, whether or not it
// has ever run.
func (s *Supervisor) LogPath(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if runner, ok := s.runners[id]; ok {
		return runner.LogPath()
	}
	return NewRunner(storage.Tool{ID: id}, s.toolsDir, s.logDir, nil).LogPath()
}

func (s *Supervisor) recordExit(toolID string, exitCode int) {
	s.recordEvent(toolID, storage.EventExit, &exitCode, "")
}

// recordEvent persists a lifecycle event. Storage failures are logged and
// swallowed: event history must never block process control.
func (s *Supervisor) recordEvent(toolID, event string, exitCode *int, message string) {
	err := s.store.RecordEvent(context.Background(), &storage.ProcessEvent{
		ToolID:   toolID,
		Event:    event,
		ExitCode: exitCode,
		Message:  message,
	})
	if err != nil && s.log != nil {
		s.log.Warn("Failed to record process event", "tool", toolID, "event", event, "error", err.Error())
	}
}
