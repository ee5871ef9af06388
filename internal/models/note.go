// Package models defines the domain types for kadisync.
package models

import (
	"path"
	"strings"
	"time"
)

// NoteExtension is the only document type the sync engine handles.
const NoteExtension = "md"

// Note identifies a document in the vault. The engine never owns its content.
type Note struct {
	Path      string `json:"path"`
	Basename  string `json:"basename"`
	Extension string `json:"extension"`
}

// NewNote derives basename and extension from a vault-relative path.
func NewNote(p string) Note {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	base := path.Base(p)
	ext := path.Ext(base)
	return Note{
		Path:      p,
		Basename:  strings.TrimSuffix(base, ext),
		Extension: strings.TrimPrefix(ext, "."),
	}
}

// NoteSummary is a row of the sync ledger.
type NoteSummary struct {
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Checksum   string    `json:"checksum"`
	RecordID   int64     `json:"record_id,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	State      string    `json:"state,omitempty"`
	Visibility string    `json:"visibility,omitempty"`
	SyncedAt   string    `json:"synced_at,omitempty"`
	ModifiedAt string    `json:"modified_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Synced reports whether the ledger knows a remote record for the note.
func (n NoteSummary) Synced() bool { return n.RecordID != 0 }

// Operation is the remote call a sync attempt made.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// Outcome is how a sync attempt ended.
type Outcome string

const (
	OutcomeSynced Outcome = "synced"
	OutcomeFailed Outcome = "failed"
)

// SyncEvent is one entry of a note's sync history.
type SyncEvent struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Operation  Operation `json:"operation"`
	Outcome    Outcome   `json:"outcome"`
	RecordID   int64     `json:"record_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	At         time.Time `json:"at"`
}
