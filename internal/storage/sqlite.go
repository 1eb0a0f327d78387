package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Logger interface for storage operations
type Logger interface {
	Error(msg string, context ...interface{})
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}

// Global logger for storage package
var storageLogger Logger

// SetLogger sets the logger for the storage package
func SetLogger(logger Logger) {
	storageLogger = logger
}

// SQLiteStore implements ToolStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite-based tool store.
// If dbPath is empty, uses an in-memory database (:memory:).
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles write serialization internally with busy_timeout;
	// WAL mode allows concurrent reads.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &SQLiteStore{db: db, dbPath: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tools (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		command TEXT NOT NULL,
		args TEXT NOT NULL DEFAULT '[]',
		kind TEXT NOT NULL DEFAULT 'normal',
		enabled INTEGER NOT NULL DEFAULT 1,
		moonraker_url TEXT NOT NULL DEFAULT '',
		moonraker_api_port INTEGER NOT NULL DEFAULT 0,
		dashboard_port INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS process_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tool_id TEXT NOT NULL,
		event TEXT NOT NULL,
		exit_code INTEGER,
		message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_process_events_tool ON process_events(tool_id, created_at);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create adds a new tool. Returns ErrDuplicate if the id already exists.
func (s *SQLiteStore) Create(ctx context.Context, tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return err
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM tools WHERE id = ?", tool.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for existing tool: %w", err)
	}
	if exists > 0 {
		return ErrDuplicate
	}

	now := time.Now().UTC()
	tool.CreatedAt = now
	tool.UpdatedAt = now

	args, err := json.Marshal(tool.Args)
	if err != nil {
		return fmt.Errorf("failed to encode tool args: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tools (id, label, command, args, kind, enabled, moonraker_url, moonraker_api_port, dashboard_port, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tool.ID, tool.Label, tool.Command, string(args), tool.Kind, boolToInt(tool.Enabled),
		tool.MoonrakerURL, tool.MoonrakerAPIPort, tool.DashboardPort, tool.CreatedAt, tool.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tool: %w", err)
	}
	return nil
}

// Get retrieves a tool by id. Returns ErrNotFound if not found.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Tool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, command, args, kind, enabled, moonraker_url, moonraker_api_port, dashboard_port, created_at, updated_at
		FROM tools WHERE id = ?`, id)
	tool, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tool: %w", err)
	}
	return tool, nil
}

// Update modifies an existing tool. Returns ErrNotFound if not found.
func (s *SQLiteStore) Update(ctx context.Context, tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return err
	}

	tool.UpdatedAt = time.Now().UTC()

	args, err := json.Marshal(tool.Args)
	if err != nil {
		return fmt.Errorf("failed to encode tool args: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tools SET label = ?, command = ?, args = ?, kind = ?, enabled = ?,
			moonraker_url = ?, moonraker_api_port = ?, dashboard_port = ?, updated_at = ?
		WHERE id = ?`,
		tool.Label, tool.Command, string(args), tool.Kind, boolToInt(tool.Enabled),
		tool.MoonrakerURL, tool.MoonrakerAPIPort, tool.DashboardPort, tool.UpdatedAt, tool.ID)
	if err != nil {
		return fmt.Errorf("failed to update tool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a tool by id. Returns ErrNotFound if not found.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tools WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete tool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all tools ordered by creation time.
func (s *SQLiteStore) List(ctx context.Context) ([]*Tool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, command, args, kind, enabled, moonraker_url, moonraker_api_port, dashboard_port, created_at, updated_at
		FROM tools ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	defer rows.Close()

	var tools []*Tool
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		tools = append(tools, tool)
	}
	return tools, rows.Err()
}

// RecordEvent appends a process lifecycle event for a tool.
func (s *SQLiteStore) RecordEvent(ctx context.Context, event *ProcessEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO process_events (tool_id, event, exit_code, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.ToolID, event.Event, event.ExitCode, event.Message, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent process events, newest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, limit int) ([]*ProcessEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_id, event, exit_code, message, created_at
		FROM process_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*ProcessEvent
	for rows.Next() {
		var ev ProcessEvent
		var exitCode sql.NullInt64
		if err := rows.Scan(&ev.ID, &ev.ToolID, &ev.Event, &exitCode, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			ev.ExitCode = &code
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// GetMeta returns the stored value for key, or "" when the key is unset.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta key %q: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a key/value pair, replacing any existing value.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta key %q: %w", key, err)
	}
	return nil
}

// SeedDefaults inserts the built-in tool entries when the registry is empty.
// Returns the number of tools inserted.
func (s *SQLiteStore) SeedDefaults(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM tools").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tools: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	inserted := 0
	for _, tool := range DefaultTools() {
		if err := s.Create(ctx, tool); err != nil {
			return inserted, err
		}
		inserted++
	}
	if storageLogger != nil {
		storageLogger.Info("Seeded default tools", "count", inserted)
	}
	return inserted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTool(row rowScanner) (*Tool, error) {
	var tool Tool
	var args string
	var enabled int
	if err := row.Scan(&tool.ID, &tool.Label, &tool.Command, &args, &tool.Kind, &enabled,
		&tool.MoonrakerURL, &tool.MoonrakerAPIPort, &tool.DashboardPort, &tool.CreatedAt, &tool.UpdatedAt); err != nil {
		return nil, err
	}
	tool.Enabled = enabled != 0
	if args != "" {
		if err := json.Unmarshal([]byte(args), &tool.Args); err != nil {
			// Corrupt args column: surface the tool without args rather than failing the list
			if storageLogger != nil {
				storageLogger.Warn("Failed to decode tool args", "id", tool.ID, "error", err)
			}
		}
	}
	return &tool, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
