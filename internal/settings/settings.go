// Package settings holds the user-editable sync settings and persists them.
package settings

import (
	"maps"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
)

// Settings is the persisted configuration of the sync engine.
//
// ConflictResolution and CustomMetadataMapping are stored and editable but no
// sync path reads them yet.
type Settings struct {
	// Connection
	Host      string `yaml:"host" json:"host"`
	Token     string `yaml:"pat" json:"pat"`
	TimeoutMS int    `yaml:"timeout" json:"timeout"`
	VerifySSL bool   `yaml:"verify_ssl" json:"verifySSL"`

	// Sync options
	AutoSyncOnSave     bool   `yaml:"auto_sync_on_save" json:"autoSyncOnSave"`
	SyncAttachments    bool   `yaml:"sync_attachments" json:"syncAttachments"`
	DefaultVisibility  string `yaml:"default_visibility" json:"defaultVisibility"`
	DefaultState       string `yaml:"default_state" json:"defaultState"`
	ConflictResolution string `yaml:"conflict_resolution" json:"conflictResolution"`

	// Advanced
	CustomMetadataMapping map[string]string `yaml:"custom_metadata_mapping" json:"customMetadataMapping"`
	TagFilter             []string          `yaml:"tag_filter" json:"tagFilter"`
	ExcludeFolders        []string          `yaml:"exclude_folders" json:"excludeFolders"`
	DebugMode             bool              `yaml:"debug_mode" json:"debugMode"`
}

// Defaults returns the settings used for every field the user never set.
func Defaults() Settings {
	return Settings{
		Host:                  "https://kadi.iam.kit.edu",
		TimeoutMS:             60000,
		VerifySSL:             true,
		SyncAttachments:       true,
		DefaultVisibility:     "private",
		DefaultState:          "active",
		ConflictResolution:    "ask",
		CustomMetadataMapping: map[string]string{},
		TagFilter:             []string{},
		ExcludeFolders:        []string{},
	}
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Host, is.RequestURL),
		validation.Field(&s.TimeoutMS, validation.Min(0)),
		validation.Field(&s.DefaultVisibility, validation.Required, validation.In(toAny(models.RecordVisibilities)...)),
		validation.Field(&s.DefaultState, validation.Required, validation.In(toAny(models.RecordStates)...)),
		validation.Field(&s.ConflictResolution, validation.Required, validation.In(toAny(models.ConflictResolutions)...)),
	)
}

// Configured reports whether host and token are both set.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.Host) != "" && strings.TrimSpace(s.Token) != ""
}

// Timeout is TimeoutMS as a duration.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// ClientOptions are the options of the remote client these settings describe.
func (s Settings) ClientOptions() kadi.Options {
	return kadi.Options{
		Host:      s.Host,
		Token:     s.Token,
		Timeout:   s.Timeout(),
		VerifyTLS: s.VerifySSL,
	}
}

// Clone returns a copy that shares no slice or map with s.
func (s Settings) Clone() Settings {
	out := s
	out.CustomMetadataMapping = maps.Clone(s.CustomMetadataMapping)
	out.TagFilter = slices.Clone(s.TagFilter)
	out.ExcludeFolders = slices.Clone(s.ExcludeFolders)
	return out
}

// Redacted returns a copy safe to show: the token is masked.
func (s Settings) Redacted() Settings {
	out := s.Clone()
	if out.Token != "" {
		out.Token = TokenMask
	}
	return out
}

// TokenMask replaces the token in redacted settings. Writing it back keeps
// the stored token.
const TokenMask = "********"

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
