package syncengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
)

// NoteState is where a note stands right now.
type NoteState struct {
	State models.State `json:"state"`
	// Message is the last failure while State is StateError.
	Message string            `json:"message,omitempty"`
	Status  models.SyncStatus `json:"status"`
}

// State reports the state of note: Syncing while a request is in flight,
// Error after a failed attempt until the next one, otherwise Synced or
// Unsynced by the presence of kadi_id.
func (e *Engine) State(ctx context.Context, note models.Note) (NoteState, error) {
	h, err := e.host.Header(ctx, note)
	if err != nil {
		return NoteState{}, err
	}
	ns := NoteState{Status: models.StatusFromHeader(h)}
	if st, msg, ok := e.track.runtime(note.Path); ok {
		ns.State, ns.Message = st, msg
		return ns, nil
	}
	if ns.Status.IsSynced() {
		ns.State = models.StateSynced
	} else {
		ns.State = models.StateUnsynced
	}
	return ns, nil
}

// Status returns the sync status stored in the header of note, or
// apperr.ErrNotSynced.
func (e *Engine) Status(ctx context.Context, note models.Note) (models.SyncStatus, error) {
	h, err := e.host.Header(ctx, note)
	if err != nil {
		return models.SyncStatus{}, err
	}
	st := models.StatusFromHeader(h)
	if !st.IsSynced() {
		return st, fmt.Errorf("syncengine: %s: %w", note.Path, apperr.ErrNotSynced)
	}
	return st, nil
}

// ShowStatus notifies the sync status of note.
func (e *Engine) ShowStatus(ctx context.Context, note models.Note) error {
	st, err := e.Status(ctx, note)
	if err != nil {
		e.notifier.Notify(msgNotSynced)
		return err
	}
	e.notifier.Notify(FormatStatus(st))
	return nil
}

// FormatStatus renders st for a notice.
func FormatStatus(st models.SyncStatus) string {
	or := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	return strings.Join([]string{
		fmt.Sprintf("Record ID: %d", st.RecordID),
		"Identifier: " + or(st.Identifier, "N/A"),
		"Last synced: " + or(st.Synced, "Unknown"),
		"State: " + or(st.State, "N/A"),
		"Visibility: " + or(st.Visibility, "N/A"),
	}, "\n")
}

// StatusLine is the one-line indicator text for a note state.
func StatusLine(ns NoteState) string {
	switch ns.State {
	case models.StateSyncing:
		return "Kadi4Mat: ⟳ Syncing..."
	case models.StateError:
		return "Kadi4Mat: ✗ " + ns.Message
	case models.StateSynced:
		return fmt.Sprintf("Kadi4Mat: ✓ ID %d", ns.Status.RecordID)
	default:
		return "Kadi4Mat: Not synced"
	}
}

// RecordURL returns the web page of the record note is synced to.
func (e *Engine) RecordURL(ctx context.Context, note models.Note) (string, error) {
	client, err := e.client()
	if err != nil {
		return "", err
	}
	st, err := e.Status(ctx, note)
	if err != nil {
		e.notifier.Notify(msgNotSynced)
		return "", err
	}
	return client.RecordURL(st.RecordID), nil
}

// TestConnection asks the remote service who the token belongs to.
func (e *Engine) TestConnection(ctx context.Context) (*kadi.User, error) {
	client, err := e.client()
	if err != nil {
		e.notifier.Notify("Please configure Kadi4Mat settings first")
		return nil, err
	}
	e.notifier.Notify("Testing connection...")
	u, err := client.GetCurrentUser(ctx)
	if err != nil {
		e.notifier.Notify("❌ Connection failed: " + errorMessage(err))
		return nil, err
	}
	e.notifier.Notify("✅ Connected successfully as " + u.Username())
	return u, nil
}

// SaveDebugLog writes log into the vault as a new file and returns its name.
func (e *Engine) SaveDebugLog(note models.Note, op models.Operation, recordID int64, log *DebugLog) (string, error) {
	name := LogFileName(e.now())
	if err := e.host.SaveFile(name, []byte(log.Render(note, op, recordID))); err != nil {
		e.notifier.Notify("Failed to save debug log: " + err.Error())
		log.Add("ERROR: Failed to save log: %v", err)
		return "", err
	}
	e.notifier.Notify("Debug log saved to " + name)
	log.Add("Log saved to: %s", name)
	return name, nil
}
