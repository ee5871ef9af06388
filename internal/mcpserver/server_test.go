package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/kadisync/internal/index"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/settings"
	"github.com/starford/kadisync/internal/storage"
	"github.com/starford/kadisync/internal/syncengine"
	"github.com/starford/kadisync/internal/testutil"
	"github.com/starford/kadisync/internal/vault"
)

type fakeRecords struct {
	mu      sync.Mutex
	created []kadi.RecordParams
	err     error
}

func (f *fakeRecords) CreateRecord(_ context.Context, p kadi.RecordParams) (*kadi.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, p)
	return &kadi.Record{ID: 9, Identifier: p.Identifier, Title: p.Title}, nil
}

func (f *fakeRecords) UpdateRecord(_ context.Context, id int64, p kadi.RecordParams) (*kadi.Record, error) {
	return &kadi.Record{ID: id, Identifier: p.Identifier, Title: p.Title}, nil
}

func (f *fakeRecords) GetCurrentUser(context.Context) (*kadi.User, error) {
	u := &kadi.User{ID: 1}
	u.Identity.Username = "jdoe"
	return u, nil
}

func (f *fakeRecords) RecordURL(id int64) string { return "https://kadi.example/records/9" }

type staticSettings settings.Settings

func (s staticSettings) Get() settings.Settings { return settings.Settings(s).Clone() }

func testServer(t *testing.T) (*Server, storage.Provider, *index.DB, *fakeRecords) {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	cfg := settings.Defaults()
	cfg.Host = "https://kadi.example"
	cfg.Token = "pat"

	records := &fakeRecords{}
	v := vault.New(store, "Lab")
	engine := syncengine.New(v,
		func() (syncengine.RecordService, error) { return records, nil },
		staticSettings(cfg),
		syncengine.WithLogger(testutil.Logger()),
		syncengine.WithObserver(db),
	)
	return New(engine, v, db), store, db, records
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper; call the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "sync_note":
		result, err = srv.syncNote(ctx, req)
	case "preview_note":
		result, err = srv.previewNote(ctx, req)
	case "sync_status":
		result, err = srv.syncStatus(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "test_connection":
		result, err = srv.testConnection(ctx, req)
	case "list_licenses":
		result, err = srv.listLicenses(ctx, req)
	case "get_frontmatter_contract":
		result, err = srv.getFrontmatterContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSyncNoteAndStatus(t *testing.T) {
	srv, store, _, records := testServer(t)
	testutil.WriteNote(t, store, "exp.md", "---\noperator: jdoe\n---\n# Experiment\n")

	r := callTool(t, srv, "sync_note", map[string]any{"path": "exp.md", "title": "Run 1"})
	if r.IsError {
		t.Fatalf("sync_note error: %s", resultText(r))
	}
	var out struct {
		Operation models.Operation  `json:"operation"`
		Status    models.SyncStatus `json:"status"`
		URL       string            `json:"url"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode: %v\n%s", err, resultText(r))
	}
	if out.Operation != models.OperationCreate || out.Status.RecordID != 9 || out.URL == "" {
		t.Errorf("result = %+v", out)
	}
	if len(records.created) != 1 || records.created[0].Title != "Run 1" {
		t.Errorf("created = %+v", records.created)
	}

	r = callTool(t, srv, "sync_status", map[string]any{"path": "exp.md"})
	text := resultText(r)
	if !strings.HasPrefix(text, "Kadi4Mat: ✓ ID 9\nRecord ID: 9") {
		t.Errorf("status = %q", text)
	}
}

func TestSyncNote_Missing(t *testing.T) {
	srv, _, _, _ := testServer(t)
	r := callTool(t, srv, "sync_note", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	r = callTool(t, srv, "sync_note", map[string]any{})
	if !r.IsError {
		t.Error("expected error without path")
	}
}

func TestSyncNote_RemoteError(t *testing.T) {
	srv, store, _, records := testServer(t)
	testutil.WriteNote(t, store, "exp.md", "# Experiment\n")
	records.err = &kadi.Error{StatusCode: 409, Message: "Identifier already exists"}

	r := callTool(t, srv, "sync_note", map[string]any{"path": "exp.md"})
	if !r.IsError || resultText(r) != "Sync failed: Identifier already exists (status 409)" {
		t.Errorf("result = %q", resultText(r))
	}
	r = callTool(t, srv, "sync_status", map[string]any{"path": "exp.md"})
	if got := resultText(r); got != "Kadi4Mat: ✗ Identifier already exists" {
		t.Errorf("status = %q", got)
	}
}

func TestPreviewNote(t *testing.T) {
	srv, store, _, records := testServer(t)
	testutil.WriteNote(t, store, "exp.md", "---\nkadi_title: Tensile\ntemperature: 21.5 °C\n---\nBody\n")

	r := callTool(t, srv, "preview_note", map[string]any{"path": "exp.md"})
	var p syncengine.Preview
	if err := json.Unmarshal([]byte(resultText(r)), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Title != "Tensile" || p.Operation != models.OperationCreate || p.ExtrasCount != 4 {
		t.Errorf("preview = %+v", p)
	}
	if len(records.created) != 0 {
		t.Error("preview must not call the remote")
	}
}

func TestListNotes(t *testing.T) {
	srv, _, db, _ := testServer(t)
	_ = db.UpsertNote(index.NoteRow{Path: "a.md", Title: "A", Status: models.SyncStatus{RecordID: 1}})
	_ = db.UpsertNote(index.NoteRow{Path: "b.md", Title: "B"})

	r := callTool(t, srv, "list_notes", map[string]any{"synced": false})
	var out struct {
		Notes []models.NoteSummary `json:"notes"`
		Total int                  `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 1 || out.Notes[0].Path != "b.md" {
		t.Errorf("unsynced = %+v", out)
	}

	r = callTool(t, srv, "list_notes", map[string]any{"limit": float64(1)})
	_ = json.Unmarshal([]byte(resultText(r)), &out)
	if out.Total != 2 || len(out.Notes) != 1 {
		t.Errorf("limited = %+v", out)
	}
}

func TestTestConnection(t *testing.T) {
	srv, _, _, _ := testServer(t)
	r := callTool(t, srv, "test_connection", nil)
	if got := resultText(r); got != "Connected successfully as jdoe" {
		t.Errorf("result = %q", got)
	}
}

func TestListLicenses(t *testing.T) {
	srv, _, _, _ := testServer(t)
	r := callTool(t, srv, "list_licenses", map[string]any{"query": "apache"})
	if !strings.Contains(resultText(r), `"Apache-2.0"`) {
		t.Errorf("licenses = %s", resultText(r))
	}
	r = callTool(t, srv, "list_licenses", map[string]any{"query": "zzz-none"})
	if resultText(r) != "no licenses found" {
		t.Errorf("no match = %q", resultText(r))
	}
}

func TestFrontmatterContract(t *testing.T) {
	srv, _, _, _ := testServer(t)
	r := callTool(t, srv, "get_frontmatter_contract", nil)
	for _, key := range []string{"kadi_id", "kadi_title", "kadi_tags", "kadi_synced"} {
		if !strings.Contains(resultText(r), key) {
			t.Errorf("contract does not mention %s", key)
		}
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != contractURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
