package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/index"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/settings"
	"github.com/starford/kadisync/internal/syncengine"
	"github.com/starford/kadisync/internal/vault"
)

// Handler holds API route handlers.
type Handler struct {
	engine   *syncengine.Engine
	vault    *vault.Vault
	ledger   index.Ledger
	settings *settings.Store
}

// NewHandler creates a new Handler.
func NewHandler(engine *syncengine.Engine, v *vault.Vault, ledger index.Ledger, store *settings.Store) *Handler {
	return &Handler{engine: engine, vault: v, ledger: ledger, settings: store}
}

// notePath extracts the note path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// note resolves the wildcard to an existing note and writes the error
// response when it cannot.
func (h *Handler) note(w http.ResponseWriter, r *http.Request) (models.Note, bool) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return models.Note{}, false
	}
	note, err := h.vault.Note(path)
	if err != nil {
		writeError(w, "resolve note", err)
		return models.Note{}, false
	}
	return note, true
}

// SyncNote handles POST /api/sync/*.
//
//	@Summary		Create or update the Kadi4Mat record of a note
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string		true	"Note path"
//	@Param			body	body		SyncRequest	false	"Overrides of the seeded defaults"
//	@Success		200		{object}	SyncResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		412		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync/{path} [post]
func (h *Handler) SyncNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, ok := h.note(w, r)
	if !ok {
		return
	}

	log := syncengine.NewDebugLog(slog.Default(), time.Now)
	confirmer := syncengine.AutoConfirmer{Overrides: syncengine.Confirmation{
		Title:      req.Title,
		State:      req.State,
		Visibility: req.Visibility,
		License:    req.License,
	}}
	res, err := h.engine.SyncNote(r.Context(), note, confirmer, syncengine.WithDebugLog(log))

	var logFile string
	if req.SaveLog {
		op, recordID := h.attempt(r, note, res)
		// The notifier already reported a failed save.
		logFile, _ = h.engine.SaveDebugLog(note, op, recordID, log)
	}
	if err != nil {
		writeError(w, "sync note", err)
		return
	}

	resp := SyncResponse{
		Operation: res.Operation,
		Record:    res.Record,
		Status:    res.Status,
		Log:       log.Lines(),
		LogFile:   logFile,
	}
	if u, err := h.engine.RecordURL(r.Context(), note); err == nil {
		resp.URL = u
	}
	writeJSON(w, http.StatusOK, resp)
}

// attempt names the operation a sync made, or would have made when it failed.
func (h *Handler) attempt(r *http.Request, note models.Note, res *syncengine.Result) (models.Operation, int64) {
	if res != nil {
		return res.Operation, res.Status.RecordID
	}
	st, err := h.engine.Status(r.Context(), note)
	if err != nil {
		return models.OperationCreate, 0
	}
	return models.OperationUpdate, st.RecordID
}

// PreviewNote handles GET /api/preview/*.
//
//	@Summary		Show the payload a sync would send
//	@Tags			sync
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	PreviewResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview/{path} [get]
func (h *Handler) PreviewNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.note(w, r)
	if !ok {
		return
	}
	p, err := h.engine.Preview(r.Context(), note)
	if err != nil {
		writeError(w, "preview note", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// NoteStatus handles GET /api/status/*.
//
//	@Summary		Get the sync state of a note
//	@Tags			sync
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	StatusResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/status/{path} [get]
func (h *Handler) NoteStatus(w http.ResponseWriter, r *http.Request) {
	note, ok := h.note(w, r)
	if !ok {
		return
	}
	ns, err := h.engine.State(r.Context(), note)
	if err != nil {
		writeError(w, "note status", err)
		return
	}
	resp := StatusResponse{Path: note.Path, NoteState: ns, Line: syncengine.StatusLine(ns)}
	if ns.Status.IsSynced() {
		if u, err := h.engine.RecordURL(r.Context(), note); err == nil {
			resp.URL = u
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List the sync ledger
//	@Tags			ledger
//	@Produce		json
//	@Param			synced	query		bool	false	"Only synced (true) or unsynced (false) notes"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f index.ListFilter
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if raw := q.Get("synced"); raw != "" {
		synced, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("synced must be true or false"))
			return
		}
		f.Synced = &synced
	}

	items, total, err := h.ledger.ListNotes(f)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	if items == nil {
		items = []models.NoteSummary{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// History handles GET /api/history/*.
//
//	@Summary		List the sync attempts of a note
//	@Tags			ledger
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Param			limit	query		int		false	"Max events"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history/{path} [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	path = models.NewNote(path).Path
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.ledger.History(path, limit)
	if err != nil {
		writeError(w, "history", err)
		return
	}
	if events == nil {
		events = []models.SyncEvent{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Path: path, Events: events})
}

// Licenses handles GET /api/licenses.
//
//	@Summary		Search the license catalog
//	@Tags			sync
//	@Produce		json
//	@Param			q	query		string	false	"Words matched against id and name"
//	@Success		200	{object}	LicenseListResponse
//	@Security		BearerAuth
//	@Router			/licenses [get]
func (h *Handler) Licenses(w http.ResponseWriter, r *http.Request) {
	found := kadi.SearchLicenses(r.URL.Query().Get("q"))
	if found == nil {
		found = []kadi.License{}
	}
	writeJSON(w, http.StatusOK, LicenseListResponse{Licenses: found})
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get the sync settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Get().Redacted())
}

// UpdateSettings handles PUT /api/settings. Fields missing from the body keep
// their stored value; the masked token keeps the stored token.
//
//	@Summary		Update the sync settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SettingsResponse	true	"Settings"
//	@Success		200		{object}	SettingsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	s := h.settings.Get()
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := s.Validate(); err != nil {
		writeError(w, "update settings", fmt.Errorf("%w: %v", apperr.ErrValidation, err))
		return
	}
	if err := h.settings.Save(s); err != nil {
		writeError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, h.settings.Get().Redacted())
}

// TestConnection handles POST /api/connection/test.
//
//	@Summary		Check host and token against the instance
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	ConnectionResponse
//	@Failure		412	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/connection/test [post]
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	u, err := h.engine.TestConnection(r.Context())
	if err != nil {
		writeError(w, "test connection", err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectionResponse{
		Username:    u.Username(),
		DisplayName: u.DisplayName,
		Host:        h.settings.Get().Host,
	})
}
