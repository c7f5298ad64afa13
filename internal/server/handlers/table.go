// Package handlers implements the command surface exposed to the GUI layer.
package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apierrors "github.com/gridbase/gridbase/internal/errors"
	"github.com/gridbase/gridbase/internal/gitsnap"
	"github.com/gridbase/gridbase/internal/server/dto"
	"github.com/gridbase/gridbase/internal/tabledb"
	"github.com/gridbase/gridbase/internal/workspace"
)

// TableHandler handles workspace lifecycle and table persistence commands.
type TableHandler struct {
	mgr   *workspace.Manager
	snaps *gitsnap.Service // nil when snapshots are disabled
}

// NewTableHandler creates a new TableHandler. snaps may be nil.
func NewTableHandler(mgr *workspace.Manager, snaps *gitsnap.Service) *TableHandler {
	return &TableHandler{mgr: mgr, snaps: snaps}
}

// Load opens an existing data file as the active workspace and returns the
// full table state. The data file must already exist; use Create for new
// workspaces.
func (h *TableHandler) Load(ctx context.Context, req dto.LoadTableRequest) (*dto.TablePayload, error) {
	dataPath := strings.TrimSpace(req.DataPath)
	if dataPath == "" {
		return nil, apierrors.BadRequest("Data file path is required")
	}
	if _, err := os.Stat(dataPath); err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.NotFound("Data file does not exist")
		}
		return nil, apierrors.Storage("Failed to access data file", err)
	}

	schemaPath, err := h.mgr.Open(dataPath)
	if err != nil {
		return nil, err
	}
	return buildTablePayload(dataPath, schemaPath)
}

// Save normalizes rows, syncs schema metadata and atomically writes both
// workspace files, then snapshots them if snapshots are enabled.
func (h *TableHandler) Save(ctx context.Context, req dto.SaveTableRequest) (*dto.SaveTableResponse, error) {
	res, err := h.mgr.Save(req.Data, req.Schema)
	if err != nil {
		return nil, err
	}
	if h.snaps != nil {
		// Snapshot the files the save wrote, not whatever workspace is
		// active now; a concurrent open may have swapped the slot.
		h.snaps.Snapshot(ctx, fmt.Sprintf("Save %s", filepath.Base(res.DataPath)), res.DataPath, res.SchemaPath)
	}
	return &dto.SaveTableResponse{RowCount: res.RowCount, UpdatedAt: res.UpdatedAt}, nil
}

// Fetch re-reads both workspace files from disk and returns the same payload
// shape as Load. Requires an active workspace.
func (h *TableHandler) Fetch(ctx context.Context, _ struct{}) (*dto.TablePayload, error) {
	dataPath, schemaPath, err := h.mgr.Paths()
	if err != nil {
		return nil, err
	}
	return buildTablePayload(dataPath, schemaPath)
}

// Create seeds a brand new workspace, opens it and returns its table state.
func (h *TableHandler) Create(ctx context.Context, req dto.CreateWorkspaceRequest) (*dto.TablePayload, error) {
	dataPath, schemaPath, err := h.mgr.Create(req.Path)
	if err != nil {
		return nil, err
	}
	return buildTablePayload(dataPath, schemaPath)
}

// buildTablePayload reads both files and assembles the front-end payload.
func buildTablePayload(dataPath, schemaPath string) (*dto.TablePayload, error) {
	data, err := tabledb.ReadDataFile(dataPath)
	if err != nil {
		return nil, apierrors.Format("Failed to load data file", err)
	}
	schema, err := tabledb.ReadSchemaFile(schemaPath)
	if err != nil {
		return nil, apierrors.Format("Failed to load schema file", err)
	}
	return &dto.TablePayload{
		Data:   data,
		Schema: schema,
		Workspace: dto.WorkspaceInfo{
			DataPath:   dataPath,
			SchemaPath: schemaPath,
			Folder:     filepath.Dir(dataPath),
		},
	}, nil
}
