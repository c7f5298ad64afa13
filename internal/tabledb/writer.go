package tabledb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// backupPath returns the rolling backup sibling for path, e.g.
// orders.json -> orders.json.bak, orders.schema.json -> orders.schema.json.bak.
func backupPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".json.bak"
}

// tempPath returns the transient write sibling for path.
func tempPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".json.tmp"
}

// WriteWithBackup atomically replaces the contents of path.
//
// The previous content, if any, is first copied to the .json.bak sibling
// (a full copy, so the original stays in place until the new content lands).
// The new content is written to a .json.tmp sibling, synced to storage, then
// renamed onto path. An external reader therefore always observes either the
// prior complete content or the new complete content, never a partial write.
//
// Failures abort the operation with path unchanged and are surfaced verbatim;
// nothing is retried. A crash between temp-write and rename leaves an orphan
// .tmp file which the next EnsureDataFiles pass removes.
func WriteWithBackup(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	prev, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the active workspace, not user input
	if err == nil {
		if err := os.WriteFile(backupPath(path), prev, 0o644); err != nil { //nolint:gosec // G306: data files
			return fmt.Errorf("failed to write backup for %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s for backup: %w", path, err)
	}

	tmp := tempPath(path)
	f, err := os.Create(tmp) //nolint:gosec // G304: sibling of a workspace path
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	if _, err := f.Write(contents); err != nil {
		return errors.Join(fmt.Errorf("failed to write temp file for %s: %w", path, err), f.Close(), os.Remove(tmp))
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync temp file for %s: %w", path, err), f.Close(), os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file for %s: %w", path, err), os.Remove(tmp))
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename temp file onto %s: %w", path, err), os.Remove(tmp))
	}
	return nil
}
