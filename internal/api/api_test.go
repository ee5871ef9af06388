package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/kadisync/internal/index"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/settings"
	"github.com/starford/kadisync/internal/storage"
	"github.com/starford/kadisync/internal/syncengine"
	"github.com/starford/kadisync/internal/testutil"
	"github.com/starford/kadisync/internal/vault"
)

const labNote = "---\ntags: [x]\ntemperature: 21 °C\n---\n# Lab notes\nBody\n"

// remote is a minimal Kadi4Mat instance.
type remote struct {
	mu      sync.Mutex
	creates []kadi.RecordParams
	updates []kadi.RecordParams
	fail    int
}

func (rm *remote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if rm.fail != 0 {
		w.WriteHeader(rm.fail)
		_, _ = io.WriteString(w, `{"description": "Identifier already exists", "code": 409}`)
		return
	}

	var p kadi.RecordParams
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/users/me":
		_, _ = io.WriteString(w, `{"id": 1, "displayname": "Jane Doe", "identity": {"username": "jdoe"}}`)
	case r.Method == http.MethodPost && r.URL.Path == "/api/records":
		_ = json.NewDecoder(r.Body).Decode(&p)
		rm.creates = append(rm.creates, p)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(kadi.Record{ID: 42, Identifier: p.Identifier, Title: p.Title, State: p.State, Visibility: p.Visibility})
	case r.Method == http.MethodPatch && r.URL.Path == "/api/records/42":
		_ = json.NewDecoder(r.Body).Decode(&p)
		rm.updates = append(rm.updates, p)
		_ = json.NewEncoder(w).Encode(kadi.Record{ID: 42, Identifier: "lab-notes", Title: p.Title, State: p.State, Visibility: p.Visibility})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"description": "not found"}`)
	}
}

func (rm *remote) counts() (int, int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.creates), len(rm.updates)
}

func (rm *remote) setFail(code int) {
	rm.mu.Lock()
	rm.fail = code
	rm.mu.Unlock()
}

type env struct {
	router   http.Handler
	store    storage.Provider
	db       *index.DB
	settings *settings.Store
	remote   *remote
	host     string
}

// testEnv wires a vault, ledger, settings file and engine against a fake
// remote. authToken="" disables auth.
func testEnv(t *testing.T, authToken string) *env {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) *env {
	t.Helper()

	rm := &remote{}
	srv := httptest.NewServer(rm)
	t.Cleanup(srv.Close)

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	st, err := settings.Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	provider := kadi.NewProvider(st.Get().ClientOptions())
	st.OnChange(func(s settings.Settings) { provider.Reconfigure(s.ClientOptions()) })
	if err := st.Update(func(s *settings.Settings) {
		s.Host = srv.URL
		s.Token = "pat"
	}); err != nil {
		t.Fatalf("settings.Update: %v", err)
	}

	v := vault.New(store, "Lab")
	engine := syncengine.New(v, syncengine.ProviderSource(provider), st,
		syncengine.WithLogger(testutil.Logger()),
		syncengine.WithObserver(db),
	)
	h := NewHandler(engine, v, db, st)
	return &env{
		router:   NewRouter(h, authToken != "", authToken, sseHandler),
		store:    store,
		db:       db,
		settings: st,
		remote:   rm,
		host:     srv.URL,
	}
}

func (e *env) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestSyncCreateThenUpdate(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.store, "Lab.md", labNote)

	w := e.do(t, http.MethodPost, "/sync/Lab.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[SyncResponse](t, w)
	if resp.Operation != models.OperationCreate || resp.Status.RecordID != 42 {
		t.Errorf("response = %+v", resp)
	}
	if resp.URL != e.host+"/records/42" {
		t.Errorf("url = %q", resp.URL)
	}
	if len(resp.Log) == 0 {
		t.Error("debug log is empty")
	}
	content := testutil.ReadNote(t, e.store, "Lab.md")
	if !strings.Contains(content, "kadi_id: 42") || !strings.HasSuffix(content, "# Lab notes\nBody\n") {
		t.Errorf("note after sync:\n%s", content)
	}

	w = e.do(t, http.MethodPost, "/sync/Lab.md", map[string]any{})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[SyncResponse](t, w).Operation; got != models.OperationUpdate {
		t.Errorf("second operation = %q, want update", got)
	}
	if c, u := e.remote.counts(); c != 1 || u != 1 {
		t.Errorf("remote calls = %d creates, %d updates", c, u)
	}
}

func TestSync_OverridesAndSavedLog(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.store, "Lab.md", labNote)

	w := e.do(t, http.MethodPost, "/sync/Lab.md", SyncRequest{Title: "Custom", Visibility: "public", SaveLog: true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[SyncResponse](t, w)
	if resp.LogFile == "" || !strings.HasPrefix(resp.LogFile, "kadi-sync-log-") {
		t.Fatalf("log file = %q", resp.LogFile)
	}
	saved := testutil.ReadNote(t, e.store, resp.LogFile)
	if !strings.Contains(saved, "Title: Custom") {
		t.Errorf("saved log:\n%s", saved)
	}

	e.remote.mu.Lock()
	p := e.remote.creates[0]
	e.remote.mu.Unlock()
	if p.Title != "Custom" || p.Visibility != "public" || p.State != "active" {
		t.Errorf("params = %+v", p)
	}
}

func TestSync_Errors(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.store, "Lab.md", labNote)
	testutil.WriteNote(t, e.store, "Private/secret.md", "# Secret\n")
	if err := e.settings.Update(func(s *settings.Settings) {
		s.ExcludeFolders = []string{"Private/"}
	}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
		body   any
		want   int
	}{
		{"missing note", "/sync/nope.md", nil, http.StatusNotFound},
		{"excluded", "/sync/Private/secret.md", nil, http.StatusUnprocessableEntity},
		{"invalid body", "/sync/Lab.md", "{", http.StatusBadRequest},
		{"blank title", "/sync/Lab.md", SyncRequest{Title: "   "}, http.StatusBadRequest},
		{"unknown license", "/sync/Lab.md", SyncRequest{License: "nope"}, http.StatusBadRequest},
		{"traversal", "/sync/..%2F..%2Fetc%2Fpasswd.md", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, tt.target, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
	if c, u := e.remote.counts(); c+u != 0 {
		t.Errorf("remote was called %d times", c+u)
	}
}

func TestSync_NotConfigured(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.store, "Lab.md", labNote)
	if err := e.settings.Update(func(s *settings.Settings) { s.Token = "" }); err != nil {
		t.Fatal(err)
	}

	w := e.do(t, http.MethodPost, "/sync/Lab.md", nil)
	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("status = %d, want 412", w.Code)
	}
	w = e.do(t, http.MethodPost, "/connection/test", nil)
	if w.Code != http.StatusPreconditionFailed {
		t.Errorf("connection test = %d, want 412", w.Code)
	}
}

func TestSync_RemoteRejection(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.store, "Lab.md", labNote)
	e.remote.setFail(http.StatusConflict)

	w := e.do(t, http.MethodPost, "/sync/Lab.md", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode[errResponse](t, w)
	if body.Error != "Identifier already exists" || body.StatusCode != http.StatusConflict {
		t.Errorf("error body = %+v", body)
	}
	if got := testutil.ReadNote(t, e.store, "Lab.md"); got != labNote {
		t.Errorf("note changed after failure:\n%s", got)
	}

	w = e.do(t, http.MethodGet, "/status/Lab.md", nil)
	st := decode[map[string]any](t, w)
	if st["state"] != "error" || st["line"] != "Kadi4Mat: ✗ Identifier already exists" {
		t.Errorf("status after failure = %v", st)
	}

	w = e.do(t, http.MethodGet, "/history/Lab.md", nil)
	hist := decode[HistoryResponse](t, w)
	if len(hist.Events) != 1 || hist.Events[0].Outcome != models.OutcomeFailed || hist.Events[0].StatusCode != http.StatusConflict {
		t.Errorf("history = %+v", hist.Events)
	}
}

func TestPreview(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.store, "Lab.md", labNote)

	w := e.do(t, http.MethodGet, "/preview/Lab.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview = %d, body = %s", w.Code, w.Body.String())
	}
	p := decode[PreviewResponse](t, w)
	if p.Operation != models.OperationCreate || p.Title != "Lab" || p.ExtrasCount == 0 {
		t.Errorf("preview = %+v", p)
	}
	if c, u := e.remote.counts(); c+u != 0 {
		t.Error("preview must not call the remote")
	}
}

func TestStatus(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.store, "Lab.md", labNote)

	w := e.do(t, http.MethodGet, "/status/Lab.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	st := decode[map[string]any](t, w)
	if st["state"] != "unsynced" || st["line"] != "Kadi4Mat: Not synced" {
		t.Errorf("before sync = %v", st)
	}
	if _, ok := st["url"]; ok {
		t.Error("unsynced note must have no url")
	}

	e.do(t, http.MethodPost, "/sync/Lab.md", nil)
	st = decode[map[string]any](t, e.do(t, http.MethodGet, "/status/Lab.md", nil))
	if st["state"] != "synced" || st["line"] != "Kadi4Mat: ✓ ID 42" || st["url"] != e.host+"/records/42" {
		t.Errorf("after sync = %v", st)
	}

	if w := e.do(t, http.MethodGet, "/status/nope.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	e := testEnv(t, "")
	for _, row := range []index.NoteRow{
		{Path: "a.md", Title: "A", Checksum: "1", Status: models.SyncStatus{RecordID: 7}},
		{Path: "b.md", Title: "B", Checksum: "2"},
	} {
		if err := e.db.UpsertNote(row); err != nil {
			t.Fatal(err)
		}
	}

	resp := decode[NoteListResponse](t, e.do(t, http.MethodGet, "/notes?limit=10", nil))
	if resp.Total != 2 || len(resp.Notes) != 2 {
		t.Errorf("all = %+v", resp)
	}
	resp = decode[NoteListResponse](t, e.do(t, http.MethodGet, "/notes?synced=true", nil))
	if resp.Total != 1 || resp.Notes[0].Path != "a.md" {
		t.Errorf("synced = %+v", resp)
	}
	resp = decode[NoteListResponse](t, e.do(t, http.MethodGet, "/notes?synced=false", nil))
	if resp.Total != 1 || resp.Notes[0].Path != "b.md" {
		t.Errorf("unsynced = %+v", resp)
	}
	if w := e.do(t, http.MethodGet, "/notes?synced=maybe", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad filter = %d, want 400", w.Code)
	}
}

func TestListNotes_EmptyIsArray(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodGet, "/notes", nil)
	if !strings.Contains(w.Body.String(), `"notes":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHistory(t *testing.T) {
	e := testEnv(t, "")
	testutil.WriteNote(t, e.store, "Lab.md", labNote)
	e.do(t, http.MethodPost, "/sync/Lab.md", nil)
	e.do(t, http.MethodPost, "/sync/Lab.md", nil)

	hist := decode[HistoryResponse](t, e.do(t, http.MethodGet, "/history/Lab.md", nil))
	if len(hist.Events) != 2 {
		t.Fatalf("events = %+v", hist.Events)
	}
	if hist.Events[0].Operation != models.OperationUpdate || hist.Events[1].Operation != models.OperationCreate {
		t.Errorf("events not newest first: %+v", hist.Events)
	}

	hist = decode[HistoryResponse](t, e.do(t, http.MethodGet, "/history/other.md", nil))
	if hist.Events == nil || len(hist.Events) != 0 {
		t.Errorf("other = %+v", hist.Events)
	}
}

func TestLicenses(t *testing.T) {
	e := testEnv(t, "")
	resp := decode[LicenseListResponse](t, e.do(t, http.MethodGet, "/licenses?q=mit", nil))
	if len(resp.Licenses) == 0 || resp.Licenses[0].ID != "MIT" {
		t.Errorf("licenses = %+v", resp.Licenses)
	}
	all := decode[LicenseListResponse](t, e.do(t, http.MethodGet, "/licenses", nil))
	if len(all.Licenses) != len(kadi.Licenses()) {
		t.Errorf("all licenses = %d", len(all.Licenses))
	}
}

func TestSettings(t *testing.T) {
	e := testEnv(t, "")

	got := decode[settings.Settings](t, e.do(t, http.MethodGet, "/settings", nil))
	if got.Token != settings.TokenMask || got.Host != e.host {
		t.Errorf("settings = %+v", got)
	}

	w := e.do(t, http.MethodPut, "/settings", map[string]any{"defaultVisibility": "public", "pat": settings.TokenMask})
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}
	if s := e.settings.Get(); s.Token != "pat" || s.DefaultVisibility != "public" {
		t.Errorf("stored = %+v", s)
	}

	w = e.do(t, http.MethodPut, "/settings", map[string]any{"defaultState": "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid put = %d, want 400", w.Code)
	}
	if s := e.settings.Get(); s.DefaultState != "active" {
		t.Errorf("invalid settings were stored: %+v", s)
	}
}

func TestConnectionTest(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodPost, "/connection/test", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[ConnectionResponse](t, w)
	if resp.Username != "jdoe" || resp.DisplayName != "Jane Doe" || resp.Host != e.host {
		t.Errorf("response = %+v", resp)
	}
}

func TestBearerAuth_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestBearerAuth_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")

	w := e.do(t, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestBearerAuth_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/sync/Lab.md", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if c, u := e.remote.counts(); c+u != 0 {
		t.Error("rejected request reached the remote")
	}
}

func TestBearerAuth_Disabled(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestBearerAuth_Tokens(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"match", "secret123", "Bearer secret123", http.StatusNoContent},
		{"longer token", "secret123", "Bearer secret1234", http.StatusUnauthorized},
		{"shorter token", "secret123", "Bearer secret", http.StatusUnauthorized},
		{"wrong scheme", "secret123", "Basic secret123", http.StatusUnauthorized},
		{"no header", "secret123", "", http.StatusUnauthorized},
		{"empty configured token", "", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/notes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			BearerAuth(tt.token)(ok).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithSSE(t, "secret", blockingSSE)

	w := e.do(t, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	e := testEnvWithSSE(t, "", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
