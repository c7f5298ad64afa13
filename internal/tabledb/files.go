// Package tabledb persists a spreadsheet workspace: a JSON array of row
// records paired with a schema document, both plain files on disk. It owns
// the crash-safe write path, the row system-field invariants and the schema
// summary metadata.
package tabledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SchemaPathFor derives the schema file path from a data file path by
// replacing the filename's extension with .schema.json. The relation is a
// pure function of dataPath: {parent}/{stem}.schema.json.
func SchemaPathFor(dataPath string) (string, error) {
	base := filepath.Base(dataPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "", fmt.Errorf("cannot derive schema path from %q", dataPath)
	}
	return filepath.Join(filepath.Dir(dataPath), stem+".schema.json"), nil
}

// TableName returns the display name for a data file: its stem.
func TableName(dataPath string) string {
	base := filepath.Base(dataPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EnsureDataFiles makes sure both workspace files exist, seeding defaults
// where missing: an empty array for the data file, DefaultSchema for the
// schema file. It also removes orphaned .json.tmp siblings left behind by a
// crash between temp-write and rename.
func EnsureDataFiles(dataPath, schemaPath string) error {
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	for _, p := range []string{tempPath(dataPath), tempPath(schemaPath)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove orphaned temp file %s: %w", p, err)
		}
	}

	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		if err := os.WriteFile(dataPath, []byte("[]"), 0o644); err != nil { //nolint:gosec // G306: data files
			return fmt.Errorf("failed to seed data file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to stat data file: %w", err)
	}

	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		now := time.Now().UTC().Format(time.RFC3339)
		contents, err := MarshalPretty(DefaultSchema(TableName(dataPath), now))
		if err != nil {
			return fmt.Errorf("failed to encode default schema: %w", err)
		}
		if err := os.WriteFile(schemaPath, contents, 0o644); err != nil { //nolint:gosec // G306: data files
			return fmt.Errorf("failed to seed schema file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to stat schema file: %w", err)
	}
	return nil
}

// ReadDataFile reads and parses a data file. The file must contain a JSON
// array; anything else is a format error.
func ReadDataFile(path string) ([]any, error) {
	contents, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the active workspace
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	var value any
	if err := json.Unmarshal(contents, &value); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	rows, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("data file %s is not a JSON array", path)
	}
	return rows, nil
}

// ReadSchemaFile reads and parses a schema file.
func ReadSchemaFile(path string) (any, error) {
	contents, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the active workspace
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var value any
	if err := json.Unmarshal(contents, &value); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	return value, nil
}

// MarshalPretty encodes a document the way it is persisted: two-space
// indented, so external diffs and version control stay readable.
func MarshalPretty(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
