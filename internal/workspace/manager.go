// Package workspace owns the single active data/schema file pair: opening,
// creating, saving and watching it. Commands run concurrently, so the active
// workspace lives behind one mutex-guarded slot that is swapped wholesale
// when a different workspace is opened.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apierrors "github.com/gridbase/gridbase/internal/errors"
	"github.com/gridbase/gridbase/internal/tabledb"
)

// Workspace is the active (data path, schema path, watcher) triple. The
// schema path is always derived from the data path, never stored
// independently of it.
type Workspace struct {
	DataPath   string
	SchemaPath string
	watcher    *Watcher
}

// SaveResult summarizes a completed save. DataPath and SchemaPath are the
// files the save actually wrote; callers acting on them afterwards must use
// these rather than re-reading the slot, which a concurrent Open may have
// swapped in the meantime.
type SaveResult struct {
	RowCount   int
	UpdatedAt  string
	DataPath   string
	SchemaPath string
}

// Manager mediates open/create/save/reload operations on the workspace slot.
// At most one workspace, and therefore at most one watcher, is active at any
// time. The slot mutex is held only to swap the slot or copy the two paths
// out, never across file I/O or watcher callbacks.
type Manager struct {
	notifier Notifier
	poll     time.Duration

	mu sync.Mutex
	ws *Workspace
}

// NewManager creates a Manager emitting watch notifications to notifier.
// A non-positive poll falls back to DefaultPollInterval.
func NewManager(notifier Notifier, poll time.Duration) *Manager {
	return &Manager{notifier: notifier, poll: poll}
}

// Open makes dataPath the active workspace: derives the schema path, seeds
// both files if missing, stops any previous watcher and starts a new one.
// Returns the derived schema path.
func (m *Manager) Open(dataPath string) (string, error) {
	schemaPath, err := tabledb.SchemaPathFor(dataPath)
	if err != nil {
		return "", apierrors.BadRequest(err.Error())
	}
	if err := tabledb.EnsureDataFiles(dataPath, schemaPath); err != nil {
		return "", apierrors.Storage("Failed to prepare workspace files", err)
	}

	// The watcher starts (and snapshots both files) before the slot lock is
	// taken, keeping I/O out of the critical section. Watch startup itself
	// never fails: it degrades to poll-only and reports on the error stream.
	w := newWatcher(dataPath, schemaPath, m.poll, m.notifier)

	m.mu.Lock()
	if m.ws != nil {
		m.ws.watcher.Stop()
	}
	m.ws = &Workspace{DataPath: dataPath, SchemaPath: schemaPath, watcher: w}
	m.mu.Unlock()
	return schemaPath, nil
}

// Create validates candidatePath, seeds a brand new workspace there and opens
// it. The data file gets a .json extension if absent. Creation refuses to
// take over existing files: if either the data file or its derived schema
// file already exists the call fails with a conflict.
// Returns the normalized data path and the derived schema path.
func (m *Manager) Create(candidatePath string) (string, string, error) {
	dataPath := strings.TrimSpace(candidatePath)
	if dataPath == "" {
		return "", "", apierrors.BadRequest("File path is required")
	}
	if ext := filepath.Ext(dataPath); ext != ".json" {
		dataPath = strings.TrimSuffix(dataPath, ext) + ".json"
	}
	if strings.TrimSpace(tabledb.TableName(dataPath)) == "" {
		return "", "", apierrors.BadRequest("File name is required")
	}
	schemaPath, err := tabledb.SchemaPathFor(dataPath)
	if err != nil {
		return "", "", apierrors.BadRequest(err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return "", "", apierrors.Storage("Failed to create workspace directory", err)
	}
	if fileExists(dataPath) || fileExists(schemaPath) {
		return "", "", apierrors.Conflict("A file with the same name already exists")
	}

	if _, err := m.Open(dataPath); err != nil {
		return "", "", err
	}
	return dataPath, schemaPath, nil
}

// Paths returns the active pair, or a no-workspace error when the slot is
// empty. The lock is held only long enough to copy the two strings out.
func (m *Manager) Paths() (dataPath, schemaPath string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws == nil {
		return "", "", apierrors.NoWorkspace()
	}
	return m.ws.DataPath, m.ws.SchemaPath, nil
}

// Save normalizes rows, syncs the schema summary metadata and atomically
// rewrites both workspace files. The data slice and schema document are
// mutated in place. A save either completes for both files or fails outright;
// there is no cancellation.
func (m *Manager) Save(data []any, schema any) (*SaveResult, error) {
	dataPath, schemaPath, err := m.Paths()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	rowCount := tabledb.NormalizeRows(data, now)
	tabledb.UpdateSchemaMetadata(schema, rowCount, now)

	dataBytes, err := tabledb.MarshalPretty(data)
	if err != nil {
		return nil, apierrors.Internal(fmt.Sprintf("Failed to encode data: %v", err))
	}
	schemaBytes, err := tabledb.MarshalPretty(schema)
	if err != nil {
		return nil, apierrors.Internal(fmt.Sprintf("Failed to encode schema: %v", err))
	}

	// The expected content is registered with the watcher before each write:
	// the fsnotify event for our own write can arrive before the write call
	// returns, and must already compare equal. If a write fails the stale
	// snapshot makes the next poll tick emit one change notification, which
	// matches what is on disk not having the content the caller expects.
	m.noteSaved(dataPath, dataBytes)
	if err := tabledb.WriteWithBackup(dataPath, dataBytes); err != nil {
		return nil, apierrors.Storage("Failed to write data file", err)
	}
	m.noteSaved(schemaPath, schemaBytes)
	if err := tabledb.WriteWithBackup(schemaPath, schemaBytes); err != nil {
		return nil, apierrors.Storage("Failed to write schema file", err)
	}
	return &SaveResult{RowCount: rowCount, UpdatedAt: now, DataPath: dataPath, SchemaPath: schemaPath}, nil
}

// Close stops the active watcher, if any, and empties the slot.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws != nil {
		m.ws.watcher.Stop()
		m.ws = nil
	}
}

// noteSaved refreshes the watcher's content snapshot for a path just written
// by this process, suppressing the self-triggered watch event. If the
// workspace was replaced mid-save the stale path no longer matches and the
// note is a no-op.
func (m *Manager) noteSaved(path string, contents []byte) {
	m.mu.Lock()
	ws := m.ws
	m.mu.Unlock()
	if ws != nil {
		ws.watcher.NoteWrote(path, contents)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
