package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/gorilla/websocket"

	"github.com/gridbase/gridbase/internal/events"
	"github.com/gridbase/gridbase/internal/gitsnap"
	"github.com/gridbase/gridbase/internal/workspace"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	*httptest.Server
	broker *events.Broker
}

func newTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()
	if cfg == nil {
		// Generous limit so tests never trip the limiter by accident.
		cfg = &Config{Version: "test", SavesPerSecond: 1000}
	}
	broker := events.New()
	mgr := workspace.NewManager(broker, 20*time.Millisecond)
	t.Cleanup(mgr.Close)
	srv := httptest.NewServer(NewRouter(mgr, broker, cfg))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, broker: broker}
}

func (s *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(s.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (s *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(s.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func expectError(t *testing.T, resp *http.Response, status int, code, message string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status = %d, want %d", resp.StatusCode, status)
	}
	body := decodeBody[errorBody](t, resp)
	if body.Error.Code != code {
		t.Errorf("code = %q, want %q", body.Error.Code, code)
	}
	if !strings.Contains(body.Error.Message, message) {
		t.Errorf("message = %q, want substring %q", body.Error.Message, message)
	}
}

type tablePayload struct {
	Data      []any          `json:"data"`
	Schema    map[string]any `json:"schema"`
	Workspace struct {
		DataPath   string `json:"data_path"`
		SchemaPath string `json:"schema_path"`
		Folder     string `json:"folder"`
	} `json:"workspace"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.get(t, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateWorkspace(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()

	resp := s.post(t, "/api/workspace", map[string]string{"path": filepath.Join(dir, "people")})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	payload := decodeBody[tablePayload](t, resp)
	if want := filepath.Join(dir, "people.json"); payload.Workspace.DataPath != want {
		t.Errorf("data_path = %q, want %q", payload.Workspace.DataPath, want)
	}
	if payload.Workspace.Folder != dir {
		t.Errorf("folder = %q, want %q", payload.Workspace.Folder, dir)
	}
	if len(payload.Data) != 0 {
		t.Errorf("new workspace has %d rows", len(payload.Data))
	}
	if payload.Schema["version"] != "1.0" {
		t.Errorf("schema version = %v", payload.Schema["version"])
	}

	// Creating over existing files is refused.
	resp = s.post(t, "/api/workspace", map[string]string{"path": filepath.Join(dir, "people")})
	expectError(t, resp, http.StatusConflict, "CONFLICT", "already exists")
}

func TestCreateWorkspaceValidation(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.post(t, "/api/workspace", map[string]string{"path": "  "})
	expectError(t, resp, http.StatusBadRequest, "VALIDATION_FAILED", "File path is required")
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.post(t, "/api/table/load", map[string]string{"data_path": filepath.Join(t.TempDir(), "absent.json")})
	expectError(t, resp, http.StatusNotFound, "NOT_FOUND", "Data file does not exist")
}

func TestLoadExistingFile(t *testing.T) {
	s := newTestServer(t, nil)
	dataPath := filepath.Join(t.TempDir(), "orders.json")
	if err := os.WriteFile(dataPath, []byte(`[{"name":"widget"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := s.post(t, "/api/table/load", map[string]string{"data_path": dataPath})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	payload := decodeBody[tablePayload](t, resp)
	if len(payload.Data) != 1 {
		t.Fatalf("loaded %d rows, want 1", len(payload.Data))
	}
	// The schema file did not exist and was seeded alongside.
	if _, err := os.Stat(payload.Workspace.SchemaPath); err != nil {
		t.Errorf("schema file not seeded: %v", err)
	}
}

func TestLoadCorruptDataFile(t *testing.T) {
	s := newTestServer(t, nil)
	dataPath := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(dataPath, []byte(`{"not":"an array"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	resp := s.post(t, "/api/table/load", map[string]string{"data_path": dataPath})
	expectError(t, resp, http.StatusUnprocessableEntity, "FORMAT_ERROR", "Failed to load data file")
}

func TestSaveWithoutWorkspace(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.post(t, "/api/table/save", map[string]any{"data": []any{}, "schema": map[string]any{}})
	expectError(t, resp, http.StatusConflict, "NO_WORKSPACE", "Workspace not loaded")
}

func TestFetchWithoutWorkspace(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.get(t, "/api/workspace")
	expectError(t, resp, http.StatusConflict, "NO_WORKSPACE", "Workspace not loaded")
}

func TestSaveAndFetchRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()

	resp := s.post(t, "/api/workspace", map[string]string{"path": filepath.Join(dir, "orders")})
	created := decodeBody[tablePayload](t, resp)

	created.Schema["columns"] = []any{map[string]any{"id": "name", "type": "text"}}
	resp = s.post(t, "/api/table/save", map[string]any{
		"data":   []any{map[string]any{"name": "widget"}, map[string]any{"name": "gadget"}},
		"schema": created.Schema,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	saved := decodeBody[map[string]any](t, resp)
	if saved["row_count"] != float64(2) {
		t.Errorf("row_count = %v, want 2", saved["row_count"])
	}
	if saved["updated_at"] == "" {
		t.Error("updated_at is empty")
	}

	resp = s.get(t, "/api/workspace")
	fetched := decodeBody[tablePayload](t, resp)
	if len(fetched.Data) != 2 {
		t.Fatalf("fetched %d rows, want 2", len(fetched.Data))
	}
	row := fetched.Data[0].(map[string]any)
	if id, _ := row["_id"].(string); !strings.HasPrefix(id, "row_") {
		t.Errorf("_id = %v, want row_ prefix", row["_id"])
	}
	meta, _ := fetched.Schema["metadata"].(map[string]any)
	if meta["row_count"] != float64(2) {
		t.Errorf("metadata.row_count = %v, want 2", meta["row_count"])
	}
}

func TestSaveSnapshotsWrittenFiles(t *testing.T) {
	s := newTestServer(t, &Config{
		Version:        "test",
		SavesPerSecond: 1000,
		Snapshots:      gitsnap.New("tester", "tester@example.com"),
	})
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	resp := s.post(t, "/api/workspace", map[string]string{"path": filepath.Join(dir, "orders")})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.post(t, "/api/table/save", map[string]any{
		"data":   []any{map[string]any{"name": "widget"}},
		"schema": map[string]any{},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	ref, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatal(err)
	}
	if commit.Message != "Save orders.json" {
		t.Errorf("commit message = %q", commit.Message)
	}
	tree, err := commit.Tree()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"orders.json", "orders.schema.json"} {
		if _, err := tree.File(name); err != nil {
			t.Errorf("commit missing %s: %v", name, err)
		}
	}
}

func TestUnknownRequestFieldRejected(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.post(t, "/api/table/load", map[string]string{"data_path": "/x.json", "bogus": "1"})
	expectError(t, resp, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid request body")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &Config{Version: "test", SavesPerSecond: 1})
	// Burst is twice the rate: the third immediate request is rejected.
	seen429 := false
	for range 5 {
		resp := s.post(t, "/api/table/save", map[string]any{"data": []any{}, "schema": map[string]any{}})
		if resp.StatusCode == http.StatusTooManyRequests {
			body := decodeBody[errorBody](t, resp)
			if body.Error.Code != "RATE_LIMITED" {
				t.Errorf("code = %q, want RATE_LIMITED", body.Error.Code)
			}
			seen429 = true
			break
		}
		resp.Body.Close()
	}
	if !seen429 {
		t.Error("limiter never rejected a request")
	}
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t, nil)
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	s.broker.FileChanged("/ws/t.json", "/ws/t.schema.json")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		ID      json.RawMessage `json:"id"`
		Name    string          `json:"event"`
		Payload struct {
			DataPath   string `json:"data_path"`
			SchemaPath string `json:"schema_path"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Name != events.FileChanged {
		t.Errorf("event = %q, want %q", ev.Name, events.FileChanged)
	}
	if ev.Payload.DataPath != "/ws/t.json" || ev.Payload.SchemaPath != "/ws/t.schema.json" {
		t.Errorf("payload = %+v", ev.Payload)
	}
	if len(ev.ID) == 0 {
		t.Error("event id is empty")
	}
}

func TestEventsStreamWatchError(t *testing.T) {
	s := newTestServer(t, nil)
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	s.broker.WatchError("fsnotify unavailable")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Name    string `json:"event"`
		Payload struct {
			Message string `json:"message"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Name != events.WatchError {
		t.Errorf("event = %q, want %q", ev.Name, events.WatchError)
	}
	if ev.Payload.Message != "fsnotify unavailable" {
		t.Errorf("message = %q", ev.Payload.Message)
	}
}

func TestMethodRouting(t *testing.T) {
	s := newTestServer(t, nil)
	resp, err := http.Get(s.URL + "/api/table/save")
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET on POST route: status = %d", resp.StatusCode)
	}
}

func TestErrorBodyShape(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.get(t, "/api/workspace")
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	errObj, ok := generic["error"].(map[string]any)
	if !ok {
		t.Fatalf("body = %s", raw)
	}
	for _, key := range []string{"code", "message"} {
		if _, ok := errObj[key].(string); !ok {
			t.Errorf("error.%s missing or not a string: %s", key, raw)
		}
	}
	if len(errObj) != 2 {
		t.Errorf("error object has %d keys, want 2: %s", len(errObj), raw)
	}
}
