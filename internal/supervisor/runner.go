package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/oernster/printer-launcher/internal/logger"
	"github.com/oernster/printer-launcher/internal/storage"
)

// Tool process states as reported to the web UI.
const (
	StatusStopped  = "stopped"
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusStopping = "stopping"
	StatusError    = "error"
)

var (
	// ErrAlreadyRunning is returned when starting a tool whose process is alive.
	ErrAlreadyRunning = errors.New("tool is already running")
	// ErrNotRunning is returned when stopping a tool that has no live process.
	ErrNotRunning = errors.New("tool is not running")
)

// IsActive reports whether a status string describes a live process. A tool
// in the error state has no process and can be edited or removed freely.
func IsActive(status string) bool {
	switch status {
	case StatusStarting, StatusRunning, StatusStopping:
		return true
	}
	return false
}

// ansiEscape matches terminal colour and control sequences so captured
// output stays readable in log files and the web UI.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

// LogSink receives every captured output line for a tool.
type LogSink func(toolID, line string)

// StatusSink receives state transitions for a tool.
type StatusSink func(toolID, status string)

// ExitFunc is called once when a started process finishes. A negative exit
// code means the process was killed or the code could not be determined.
type ExitFunc func(toolID string, exitCode int)

// Runner supervises a single tool process: merged stdout/stderr capture,
// per-tool log file, and terminate-then-kill shutdown.
type Runner struct {
	tool     storage.Tool
	toolsDir string
	logPath  string
	log      *logger.Logger

	logSink    LogSink
	statusSink StatusSink
	onExit     ExitFunc

	mu     sync.Mutex
	status string
	cmd    *exec.Cmd
	done   chan struct{}
}

// NewRunner creates a runner for one tool. The sinks may be nil.
func NewRunner(tool storage.Tool, toolsDir, logDir string, log *logger.Logger) *Runner {
	return &Runner{
		tool:     tool,
		toolsDir: toolsDir,
		logPath:  filepath.Join(logDir, tool.ID+".log"),
		log:      log,
		status:   StatusStopped,
	}
}

// SetLogSink sets the per-line output callback. Call before Start.
func (r *Runner) SetLogSink(sink LogSink) { r.logSink = sink }

// SetStatusSink sets the state transition callback. Call before Start.
func (r *Runner) SetStatusSink(sink StatusSink) { r.statusSink = sink }

// SetOnExit sets the process exit callback. Call before Start.
func (r *Runner) SetOnExit(fn ExitFunc) { r.onExit = fn }

// Status returns the current process state.
func (r *Runner) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Running reports whether the tool process is alive.
func (r *Runner) Running() bool {
	return IsActive(r.Status())
}

// LogPath returns the tool's on-disk log file path.
func (r *Runner) LogPath() string { return r.logPath }

// resolveCommand locates the tool executable: absolute paths are used as-is,
// otherwise the tools directory is tried first, then PATH.
func (r *Runner) resolveCommand() (string, error) {
	command := r.tool.Command
	if filepath.IsAbs(command) {
		if _, err := os.Stat(command); err != nil {
			return "", fmt.Errorf("executable not found: %s", command)
		}
		return command, nil
	}
	if r.toolsDir != "" {
		candidate := filepath.Join(r.toolsDir, command)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		// Windows installers drop .exe binaries into the tools dir
		if _, err := os.Stat(candidate + ".exe"); err == nil {
			return candidate + ".exe", nil
		}
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("executable not found: %s", command)
	}
	return path, nil
}

// Start launches the tool process. It returns once the process has been
// spawned; output capture and exit handling run in background goroutines.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.status == StatusStarting || r.status == StatusRunning || r.status == StatusStopping {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.setStatusLocked(StatusStarting)
	r.mu.Unlock()

	command, err := r.resolveCommand()
	if err != nil {
		r.writeLog(fmt.Sprintf("[launcher] %v\n", err))
		r.setStatus(StatusError)
		return err
	}

	args := append([]string(nil), r.tool.Args...)
	if r.tool.DashboardPort > 0 {
		// Lets multiple dashboard instances run on different ports
		args = append(args, "--port", strconv.Itoa(r.tool.DashboardPort))
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = filepath.Dir(command)
	cmd.Env = append(os.Environ(), "LAUNCHER_TOOL_LABEL="+r.tool.Label)
	if r.tool.MoonrakerURL != "" {
		cmd.Env = append(cmd.Env, "MOONRAKER_API_URL="+r.tool.MoonrakerURL)
	}
	setProcAttr(cmd)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	r.writeLog(fmt.Sprintf("\n==== %s START ====\n", time.Now().Format("2006-01-02 15:04:05")))
	r.writeLog(fmt.Sprintf("[launcher] Command: %s\n", command))
	if len(args) > 0 {
		r.writeLog(fmt.Sprintf("[launcher] Args: %v\n", args))
	}
	if r.tool.MoonrakerURL != "" {
		r.writeLog(fmt.Sprintf("[launcher] Moonraker URL: %s\n", r.tool.MoonrakerURL))
	}
	if r.tool.DashboardPort > 0 {
		r.writeLog(fmt.Sprintf("[launcher] Dashboard port: %d\n", r.tool.DashboardPort))
	}

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		r.writeLog(fmt.Sprintf("[launcher] Failed to start: %v\n", err))
		r.setStatus(StatusError)
		return fmt.Errorf("failed to start %s: %w", r.tool.ID, err)
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.cmd = cmd
	r.done = done
	r.setStatusLocked(StatusRunning)
	r.mu.Unlock()

	r.writeLog(fmt.Sprintf("[launcher] PID: %d\n", cmd.Process.Pid))
	if r.log != nil {
		r.log.Info("Tool started", "tool", r.tool.ID, "pid", cmd.Process.Pid)
	}

	go r.captureOutput(pr)
	go r.waitForExit(cmd, pw, done)
	return nil
}

// captureOutput relays merged stdout/stderr lines to the log file and sink.
func (r *Runner) captureOutput(pr *io.PipeReader) {
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.writeLog(scanner.Text() + "\n")
	}
	pr.Close()
}

func (r *Runner) waitForExit(cmd *exec.Cmd, pw *io.PipeWriter, done chan struct{}) {
	err := cmd.Wait()
	pw.Close()

	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	r.writeLog(fmt.Sprintf("\n==== %s EXIT code=%d ====\n",
		time.Now().Format("2006-01-02 15:04:05"), exitCode))
	if r.log != nil {
		r.log.Info("Tool exited", "tool", r.tool.ID, "exit_code", exitCode)
	}

	r.mu.Lock()
	r.cmd = nil
	r.setStatusLocked(StatusStopped)
	r.mu.Unlock()
	close(done)

	if r.onExit != nil {
		r.onExit(r.tool.ID, exitCode)
	}
}

// Stop requests a graceful shutdown and escalates to a hard kill if the
// process is still alive after the grace period. One-shot tools get a longer
// grace period since they may be mid-command on a remote host.
func (r *Runner) Stop() error {
	r.mu.Lock()
	cmd := r.cmd
	done := r.done
	if cmd == nil || cmd.Process == nil {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.setStatusLocked(StatusStopping)
	r.mu.Unlock()

	r.writeLog(fmt.Sprintf("\n==== %s STOP requested ====\n", time.Now().Format("2006-01-02 15:04:05")))

	// A process serving HTTP may not release its port on a gentle terminate,
	// which makes the dashboard look like it is still running. Escalate fast.
	terminate(cmd)

	grace := 500 * time.Millisecond
	if r.tool.Kind == storage.KindOneshot {
		grace = 2 * time.Second
	}

	select {
	case <-done:
		return nil
	case <-time.After(grace):
	}

	r.writeLog("[launcher] Force-killing process.\n")
	kill(cmd)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("process %s did not exit after kill", r.tool.ID)
	}
	return nil
}

func (r *Runner) setStatus(status string) {
	r.mu.Lock()
	r.setStatusLocked(status)
	r.mu.Unlock()
}

// setStatusLocked updates the state and notifies the sink. Caller holds mu.
func (r *Runner) setStatusLocked(status string) {
	r.status = status
	if r.statusSink != nil {
		go r.statusSink(r.tool.ID, status)
	}
}

// writeLog appends ANSI-stripped text to the tool's log file and forwards it
// to the log sink. File errors are ignored: logging must never take a tool down.
func (r *Runner) writeLog(text string) {
	if text == "" {
		return
	}
	text = ansiEscape.ReplaceAllString(text, "")

	if err := os.MkdirAll(filepath.Dir(r.logPath), 0o755); err == nil {
		if f, err := os.OpenFile(r.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			f.WriteString(text)
			f.Close()
		}
	}
	if r.logSink != nil {
		r.logSink(r.tool.ID, text)
	}
}
