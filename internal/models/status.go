package models

import (
	"time"

	"github.com/starford/kadisync/internal/frontmatter"
)

// Header keys of the sync status.
const (
	KeySynced   = "kadi_synced"
	KeyModified = "kadi_modified"
)

// TimeLayout renders timestamps the way the status fields store them.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t as an ISO-8601 UTC string with milliseconds.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// SyncStatus is the sync bookkeeping persisted in a note's header. A zero
// RecordID means no remote record is known.
type SyncStatus struct {
	RecordID   int64  `json:"record_id,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Synced     string `json:"synced,omitempty"`
	State      string `json:"state,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	Modified   string `json:"modified,omitempty"`
	License    string `json:"license,omitempty"`
}

// IsSynced reports whether the status names a remote record.
func (s SyncStatus) IsSynced() bool { return s.RecordID != 0 }

// StatusFromHeader reads the status fields of h. Values of the wrong type are
// ignored.
func StatusFromHeader(h *frontmatter.Header) SyncStatus {
	var s SyncStatus
	if v, ok := h.Lookup(frontmatter.KeyID); ok {
		s.RecordID, _ = frontmatter.RecordID(v)
	}
	s.Identifier = str(h, frontmatter.KeyIdentifier)
	s.Synced = str(h, KeySynced)
	s.State = str(h, frontmatter.KeyState)
	s.Visibility = str(h, frontmatter.KeyVisibility)
	s.Modified = str(h, KeyModified)
	s.License = str(h, frontmatter.KeyLicense)
	return s
}

// Patch returns the header entries for s. Empty optional fields are left out
// so that the merge keeps whatever the note already had.
func (s SyncStatus) Patch() *frontmatter.Header {
	h := frontmatter.NewHeader()
	if s.RecordID != 0 {
		h.Set(frontmatter.KeyID, s.RecordID)
	}
	set := func(key, value string) {
		if value != "" {
			h.Set(key, value)
		}
	}
	set(frontmatter.KeyIdentifier, s.Identifier)
	set(KeySynced, s.Synced)
	set(frontmatter.KeyState, s.State)
	set(frontmatter.KeyVisibility, s.Visibility)
	set(KeyModified, s.Modified)
	set(frontmatter.KeyLicense, s.License)
	return h
}

func str(h *frontmatter.Header, key string) string {
	v, ok := h.Lookup(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
