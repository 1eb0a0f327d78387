package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := New(INFO, tmpDir, "launcher", 100)
	defer logger.Close()
	logger.SetConsoleOutput(false)

	logger.Error("error message")
	logger.Warn("warn message")
	logger.Info("info message")
	logger.Debug("debug message") // Should not appear
	logger.Trace("trace message") // Should not appear

	buffer := logger.GetBuffer()

	if len(buffer) != 3 {
		t.Errorf("expected 3 log entries, got %d", len(buffer))
	}

	if buffer[0].Level != ERROR || buffer[0].Message != "error message" {
		t.Errorf("first entry should be ERROR, got %v", buffer[0])
	}
	if buffer[1].Level != WARN || buffer[1].Message != "warn message" {
		t.Errorf("second entry should be WARN, got %v", buffer[1])
	}
	if buffer[2].Level != INFO || buffer[2].Message != "info message" {
		t.Errorf("third entry should be INFO, got %v", buffer[2])
	}
}

func TestLoggerContext(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := New(INFO, tmpDir, "launcher", 100)
	defer logger.Close()
	logger.SetConsoleOutput(false)

	logger.Info("test message", "key1", "value1", "key2", 42)

	buffer := logger.GetBuffer()
	if len(buffer) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(buffer))
	}

	entry := buffer[0]
	if entry.Context["key1"] != "value1" {
		t.Errorf("expected context key1=value1, got %v", entry.Context["key1"])
	}
	if entry.Context["key2"] != 42 {
		t.Errorf("expected context key2=42, got %v", entry.Context["key2"])
	}
}

func TestLoggerSetLevel(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := New(INFO, tmpDir, "launcher", 100)
	defer logger.Close()
	logger.SetConsoleOutput(false)

	logger.Debug("debug1") // Should not appear

	logger.SetLevel(DEBUG)
	logger.Debug("debug2") // Should appear

	buffer := logger.GetBuffer()
	if len(buffer) != 1 {
		t.Errorf("expected 1 log entry, got %d", len(buffer))
	}
	if buffer[0].Message != "debug2" {
		t.Errorf("expected 'debug2', got %s", buffer[0].Message)
	}
}

func TestLoggerCircularBuffer(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := New(INFO, tmpDir, "launcher", 5)
	defer logger.Close()
	logger.SetConsoleOutput(false)

	for i := 0; i < 10; i++ {
		logger.Info("message", "num", i)
	}

	buffer := logger.GetBuffer()
	if len(buffer) != 5 {
		t.Errorf("expected buffer size 5, got %d", len(buffer))
	}

	// Should have messages 5-9 (oldest dropped)
	if buffer[0].Context["num"] != 5 {
		t.Errorf("expected oldest entry to be num=5, got %v", buffer[0].Context["num"])
	}
	if buffer[4].Context["num"] != 9 {
		t.Errorf("expected newest entry to be num=9, got %v", buffer[4].Context["num"])
	}
}

func TestLoggerFileOutput(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := New(INFO, tmpDir, "launcher", 100)
	logger.SetConsoleOutput(false)

	logger.Info("test message", "key", "value")
	logger.Close()

	data, err := os.ReadFile(filepath.Join(tmpDir, "launcher.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "[INFO] test message") {
		t.Errorf("log file missing entry, got: %s", content)
	}
	if !strings.Contains(content, "key=value") {
		t.Errorf("log file missing context, got: %s", content)
	}
}

func TestLoggerRateLimited(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := New(WARN, tmpDir, "launcher", 100)
	defer logger.Close()
	logger.SetConsoleOutput(false)

	logger.WarnRateLimited("key", time.Minute, "first")
	logger.WarnRateLimited("key", time.Minute, "suppressed")

	buffer := logger.GetBuffer()
	if len(buffer) != 1 {
		t.Fatalf("expected 1 entry after rate limiting, got %d", len(buffer))
	}
	if buffer[0].Message != "first" {
		t.Errorf("expected 'first', got %s", buffer[0].Message)
	}
}

func TestLoggerOnLogCallback(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	logger := New(INFO, tmpDir, "launcher", 100)
	defer logger.Close()
	logger.SetConsoleOutput(false)

	got := make(chan LogEntry, 1)
	logger.SetOnLogCallback(func(e LogEntry) { got <- e })

	logger.Info("streamed")

	select {
	case e := <-got:
		if e.Message != "streamed" {
			t.Errorf("expected 'streamed', got %s", e.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
}

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]LogLevel{
		"ERROR":   ERROR,
		"WARN":    WARN,
		"INFO":    INFO,
		"DEBUG":   DEBUG,
		"TRACE":   TRACE,
		"unknown": INFO,
	}
	for in, want := range cases {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}
