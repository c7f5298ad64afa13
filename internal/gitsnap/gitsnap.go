// Package gitsnap commits workspace files after a save when the workspace
// folder is inside a git work tree. Snapshots are best-effort history on top
// of the rolling .bak backup: failures are logged, never surfaced to the
// save caller, and a folder outside any repository is a silent no-op.
package gitsnap

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Service snapshots workspace file changes into an existing git repository.
type Service struct {
	name  string
	email string
	mu    sync.Mutex
}

// New creates a snapshot service committing as name <email>.
func New(name, email string) *Service {
	if name == "" {
		name = "gridbase"
	}
	if email == "" {
		email = "gridbase@localhost"
	}
	return &Service{name: name, email: email}
}

// Snapshot stages files and commits them with msg. All files must live under
// the same work tree. It never returns an error: outcomes are logged.
func (s *Service) Snapshot(ctx context.Context, msg string, files ...string) {
	if len(files) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(files[0])
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			slog.DebugContext(ctx, "Workspace folder is not in a git work tree, skipping snapshot", "dir", dir)
		} else {
			slog.WarnContext(ctx, "Failed to open git repository for snapshot", "dir", dir, "err", err)
		}
		return
	}

	wt, err := repo.Worktree()
	if err != nil {
		slog.WarnContext(ctx, "Failed to get worktree for snapshot", "dir", dir, "err", err)
		return
	}
	root := wt.Filesystem.Root()

	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			slog.WarnContext(ctx, "Failed to resolve path inside work tree", "path", f, "err", err)
			return
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			slog.WarnContext(ctx, "Failed to stage file for snapshot", "path", rel, "err", err)
			return
		}
	}

	status, err := wt.Status()
	if err != nil {
		slog.WarnContext(ctx, "Failed to get worktree status", "dir", dir, "err", err)
		return
	}
	if status.IsClean() {
		return
	}

	now := time.Now()
	sig := &object.Signature{Name: s.name, Email: s.email, When: now}
	if _, err := wt.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		slog.WarnContext(ctx, "Failed to commit snapshot", "dir", dir, "err", err)
		return
	}
	slog.InfoContext(ctx, "Committed workspace snapshot", "msg", msg)
}
