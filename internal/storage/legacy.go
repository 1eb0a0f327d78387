package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// legacyToolEntry mirrors the JSON shape of the old tools_config.json file.
// Ports may appear as numbers or digit strings; unknown keys are ignored.
type legacyToolEntry struct {
	ID               string      `json:"id"`
	Label            string      `json:"label"`
	Command          string      `json:"command"`
	Args             []string    `json:"args"`
	ProjectDir       string      `json:"project_dir"`
	Script           string      `json:"script"`
	Kind             string      `json:"kind"`
	Enabled          *bool       `json:"enabled"`
	MoonrakerURL     string      `json:"moonraker_url"`
	MoonrakerAPIPort interface{} `json:"moonraker_api_port"`
	MoonrakerPort    interface{} `json:"moonraker_port"`
}

type legacyPayload struct {
	Tools []json.RawMessage `json:"tools"`
}

// metaLegacyImport marks a completed tools_config.json import. Without it a
// legacy tool the user deletes would resurrect on the next startup.
const metaLegacyImport = "legacy_import_done"

// ImportLegacyJSON reads an old-style tools_config.json file and inserts any
// entries whose ids are not already present. Invalid entries are skipped, not
// fatal; a corrupt or missing file imports nothing. The migration runs once
// per database: after a file has been processed the store is marked and later
// calls import nothing. Returns the number of tools imported.
func ImportLegacyJSON(ctx context.Context, store ToolStore, path string) (int, error) {
	if done, err := store.GetMeta(ctx, metaLegacyImport); err == nil && done != "" {
		return 0, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, nil // treat as missing, nothing to import
	}

	imported := 0
	for _, item := range parseLegacyItems(raw) {
		tool := legacyToTool(item)
		if tool == nil {
			continue
		}
		if err := store.Create(ctx, tool); err != nil {
			// Already present or invalid: skip, keep importing the rest
			continue
		}
		imported++
	}

	if err := store.SetMeta(ctx, metaLegacyImport, time.Now().UTC().Format(time.RFC3339)); err != nil {
		if storageLogger != nil {
			storageLogger.Warn("Failed to mark legacy import as done", "error", err)
		}
	}
	return imported, nil
}

// parseLegacyItems accepts either {"tools": [...]} or a bare JSON list.
func parseLegacyItems(raw []byte) []legacyToolEntry {
	var payload legacyPayload
	var rawItems []json.RawMessage

	if err := json.Unmarshal(raw, &payload); err == nil && payload.Tools != nil {
		rawItems = payload.Tools
	} else if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil
	}

	var items []legacyToolEntry
	for _, r := range rawItems {
		var entry legacyToolEntry
		if err := json.Unmarshal(r, &entry); err != nil {
			continue // skip entries that cannot be parsed cleanly
		}
		items = append(items, entry)
	}
	return items
}

func legacyToTool(entry legacyToolEntry) *Tool {
	id := strings.TrimSpace(entry.ID)
	label := strings.TrimSpace(entry.Label)

	command := strings.TrimSpace(entry.Command)
	if command == "" {
		// Old entries reference a project directory plus a script inside it
		dir := strings.TrimSpace(entry.ProjectDir)
		script := strings.TrimSpace(entry.Script)
		if dir != "" && script != "" {
			command = filepath.Join(dir, script)
		}
	}

	kind := strings.TrimSpace(entry.Kind)
	if kind == "" {
		kind = KindNormal
	}

	if id == "" || label == "" || command == "" {
		return nil
	}
	if kind != KindNormal && kind != KindOneshot {
		return nil
	}

	enabled := true
	if entry.Enabled != nil {
		enabled = *entry.Enabled
	}

	return &Tool{
		ID:               id,
		Label:            label,
		Command:          command,
		Args:             entry.Args,
		Kind:             kind,
		Enabled:          enabled,
		MoonrakerURL:     strings.TrimSpace(entry.MoonrakerURL),
		MoonrakerAPIPort: legacyPort(entry.MoonrakerAPIPort),
		DashboardPort:    legacyPort(entry.MoonrakerPort),
	}
}

// legacyPort accepts ports encoded as JSON numbers or digit strings.
func legacyPort(v interface{}) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n
		}
	}
	return 0
}
