package storage

import "context"

// ToolStore is the interface for tool registry storage operations.
// Implementations can be SQLite (disk-based) or in-memory for tests.
type ToolStore interface {
	// Create adds a new tool. Returns ErrDuplicate if the id already exists.
	Create(ctx context.Context, tool *Tool) error

	// Get retrieves a tool by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*Tool, error)

	// Update modifies an existing tool. Returns ErrNotFound if not found.
	Update(ctx context.Context, tool *Tool) error

	// Delete removes a tool by id. Returns ErrNotFound if not found.
	Delete(ctx context.Context, id string) error

	// List returns all tools ordered by creation time.
	List(ctx context.Context) ([]*Tool, error)

	// RecordEvent appends a process lifecycle event for a tool.
	RecordEvent(ctx context.Context, event *ProcessEvent) error

	// ListEvents returns the most recent process events, newest first.
	ListEvents(ctx context.Context, limit int) ([]*ProcessEvent, error)

	// GetMeta returns the stored value for key, or "" when the key is unset.
	GetMeta(ctx context.Context, key string) (string, error)

	// SetMeta stores a key/value pair, replacing any existing value.
	SetMeta(ctx context.Context, key, value string) error

	// Close closes the underlying database connection.
	Close() error
}
