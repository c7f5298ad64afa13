// Package dto defines the request and response shapes of the command API.
package dto

// LoadTableRequest opens an existing data file as the active workspace.
type LoadTableRequest struct {
	DataPath string `json:"data_path"`
}

// SaveTableRequest persists the full table state. Rows and schema are
// loosely typed documents: user columns live alongside the system fields.
type SaveTableRequest struct {
	Data   []any `json:"data"`
	Schema any   `json:"schema"`
}

// CreateWorkspaceRequest creates a brand new workspace at path. A .json
// extension is added if absent.
type CreateWorkspaceRequest struct {
	Path string `json:"path"`
}
