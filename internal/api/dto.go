package api

import (
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/settings"
	"github.com/starford/kadisync/internal/syncengine"
)

// SyncRequest is the optional body of a sync. Empty fields keep the values
// seeded from the note header and the settings.
type SyncRequest struct {
	Title      string `json:"title,omitempty" example:"Lab notes"`
	State      string `json:"state,omitempty" example:"active" enums:"active,inactive"`
	Visibility string `json:"visibility,omitempty" example:"private" enums:"private,public"`
	License    string `json:"license,omitempty" example:"CC-BY-4.0"`
	// SaveLog writes the debug log of the attempt into the vault.
	SaveLog bool `json:"save_log,omitempty"`
}

// SyncResponse is the outcome of a successful sync.
type SyncResponse struct {
	Operation models.Operation  `json:"operation" example:"create" validate:"required"`
	Record    *kadi.Record      `json:"record" validate:"required"`
	Status    models.SyncStatus `json:"status" validate:"required"`
	URL       string            `json:"url,omitempty" example:"https://kadi.example/records/42"`
	Log       []string          `json:"log"`
	LogFile   string            `json:"log_file,omitempty" example:"kadi-sync-log-2024-03-04T05-06-07-089Z.txt"`
}

// PreviewResponse is the payload a sync with the seeded defaults would send.
type PreviewResponse = syncengine.Preview

// StatusResponse is the current state of a note.
type StatusResponse struct {
	Path string `json:"path" example:"Projects/Lab.md" validate:"required"`
	syncengine.NoteState
	Line string `json:"line" example:"Kadi4Mat: ✓ ID 42" validate:"required"`
	URL  string `json:"url,omitempty"`
}

// NoteListResponse wraps paginated ledger listings.
type NoteListResponse struct {
	Notes []models.NoteSummary `json:"notes" validate:"required"`
	Total int                  `json:"total" example:"42" validate:"required"`
}

// HistoryResponse lists the sync attempts of a note, newest first.
type HistoryResponse struct {
	Path   string             `json:"path" validate:"required"`
	Events []models.SyncEvent `json:"events" validate:"required"`
}

// LicenseListResponse wraps the license catalog.
type LicenseListResponse struct {
	Licenses []kadi.License `json:"licenses" validate:"required"`
}

// SettingsResponse is the stored settings with the token masked.
type SettingsResponse = settings.Settings

// ConnectionResponse names the owner of the configured token.
type ConnectionResponse struct {
	Username    string `json:"username" example:"jdoe" validate:"required"`
	DisplayName string `json:"display_name,omitempty" example:"Jane Doe"`
	Host        string `json:"host" example:"https://kadi.iam.kit.edu" validate:"required"`
}
