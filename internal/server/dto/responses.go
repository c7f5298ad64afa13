package dto

// WorkspaceInfo identifies the active workspace to the front end.
type WorkspaceInfo struct {
	DataPath   string `json:"data_path"`
	SchemaPath string `json:"schema_path"`
	Folder     string `json:"folder"`
}

// TablePayload is the full table state: row array, schema document and
// workspace identity. Returned by load, fetch and create.
type TablePayload struct {
	Data      []any         `json:"data"`
	Schema    any           `json:"schema"`
	Workspace WorkspaceInfo `json:"workspace"`
}

// SaveTableResponse reports a completed save. UpdatedAt is RFC 3339.
type SaveTableResponse struct {
	RowCount  int    `json:"row_count"`
	UpdatedAt string `json:"updated_at"`
}

// HealthResponse reports server liveness and build version.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
