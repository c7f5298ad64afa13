package workspace

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is how often the watcher re-reads the watched files to
// bridge environments where native change notifications are unreliable, e.g.
// network filesystems.
const DefaultPollInterval = time.Second

// Notifier receives watch notifications. Implementations must not block and
// must not call back into the Manager; the watcher runs on its own goroutine
// and never acquires the workspace lock.
type Notifier interface {
	// FileChanged reports that at least one of the two workspace files
	// changed on disk. Both paths are carried; the receiver is expected to
	// reload both.
	FileChanged(dataPath, schemaPath string)
	// WatchError reports a failure of the underlying watch mechanism. The
	// watcher is not torn down on error; a persistent OS-level failure keeps
	// reporting until the workspace is reopened.
	WatchError(message string)
}

// snapshot is the last known content state of a watched file.
type snapshot struct {
	present bool
	sum     [sha256.Size]byte
}

func takeSnapshot(path string) snapshot {
	contents, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the active workspace
	if err != nil {
		return snapshot{}
	}
	return snapshot{present: true, sum: sha256.Sum256(contents)}
}

// Watcher monitors exactly the two paths of a workspace for external
// modification. It combines native fsnotify events with a polling ticker;
// both feed the same content-comparison gate, so an event is only forwarded
// when file bytes actually differ from the last known snapshot. Spurious
// notifications from metadata-only touches are suppressed.
//
// The paths are immutable copies handed over at construction; the watcher
// never reads Manager state after startup.
type Watcher struct {
	dataPath   string
	schemaPath string
	notifier   Notifier
	poll       time.Duration
	fsw        *fsnotify.Watcher // nil when degraded to poll-only

	mu        sync.Mutex
	snapshots map[string]snapshot

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// newWatcher starts watching the two paths. It does not fail: when fsnotify
// is unavailable the watcher degrades to poll-only operation and reports the
// condition on the error notification stream.
func newWatcher(dataPath, schemaPath string, poll time.Duration, notifier Notifier) *Watcher {
	w := newPollWatcher(dataPath, schemaPath, poll, notifier)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		notifier.WatchError(fmt.Sprintf("native file watching unavailable, falling back to polling: %v", err))
	} else {
		for _, p := range []string{dataPath, schemaPath} {
			if err := fsw.Add(p); err != nil {
				notifier.WatchError(fmt.Sprintf("failed to watch %s, relying on polling: %v", p, err))
			}
		}
		w.fsw = fsw
	}

	w.start()
	return w
}

// newPollWatcher builds a watcher with no native backend: changes are
// detected by the poll loop alone. The caller starts it with start.
func newPollWatcher(dataPath, schemaPath string, poll time.Duration, notifier Notifier) *Watcher {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Watcher{
		dataPath:   dataPath,
		schemaPath: schemaPath,
		notifier:   notifier,
		poll:       poll,
		snapshots: map[string]snapshot{
			dataPath:   takeSnapshot(dataPath),
			schemaPath: takeSnapshot(schemaPath),
		},
		done: make(chan struct{}),
	}
}

func (w *Watcher) start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Watcher) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if w.fsw != nil {
		events = w.fsw.Events
		errs = w.fsw.Errors
	}

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				events, errs = nil, nil
				continue
			}
			// Only modify/create/remove kinds matter; everything else is
			// discarded. Rename is how most editors replace a file.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Exact path equality, not prefix or glob matching.
			if ev.Name != w.dataPath && ev.Name != w.schemaPath {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				// The inode watch died with the old file; re-add so native
				// events keep flowing after an atomic replace. The poll loop
				// covers the gap if this fails.
				_ = w.fsw.Add(ev.Name)
			}
			w.compareAndNotify(ev.Name)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.notifier.WatchError(err.Error())
		case <-ticker.C:
			w.compareAndNotify(w.dataPath)
			w.compareAndNotify(w.schemaPath)
		}
	}
}

// compareAndNotify re-reads path and emits a change notification if its
// content differs from the last known snapshot.
func (w *Watcher) compareAndNotify(path string) {
	current := takeSnapshot(path)
	w.mu.Lock()
	changed := current != w.snapshots[path]
	if changed {
		w.snapshots[path] = current
	}
	w.mu.Unlock()
	if changed {
		slog.Debug("Workspace file changed on disk", "path", path)
		w.notifier.FileChanged(w.dataPath, w.schemaPath)
	}
}

// NoteWrote records contents as the last known state of path, so the
// process's own save does not round-trip as a change notification.
func (w *Watcher) NoteWrote(path string, contents []byte) {
	if path != w.dataPath && path != w.schemaPath {
		return
	}
	w.mu.Lock()
	w.snapshots[path] = snapshot{present: true, sum: sha256.Sum256(contents)}
	w.mu.Unlock()
}

// Stop unregisters both watched paths and discards the watcher. Best-effort:
// unwatch failures are swallowed since the watcher is being discarded
// regardless. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.fsw != nil {
			_ = w.fsw.Remove(w.dataPath)
			_ = w.fsw.Remove(w.schemaPath)
			_ = w.fsw.Close()
		}
		w.wg.Wait()
	})
}
