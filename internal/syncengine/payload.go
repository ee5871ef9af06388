package syncengine

import (
	"context"
	"slices"
	"time"

	"github.com/starford/kadisync/internal/frontmatter"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
)

// Context keys added to the custom metadata of every request.
const (
	MetaFilename = "obsidian_filename"
	MetaVault    = "obsidian_vault"
	MetaCreated  = "created_date"
	MetaModified = "modified_date"
)

var convertOptions = kadi.ConvertOptions{NestObjects: true, ParseUnits: true}

// previewSample is how many extras a preview shows.
const previewSample = 3

// Preview is the request a sync would send, minus the description.
type Preview struct {
	Operation    models.Operation `json:"operation"`
	RecordID     int64            `json:"record_id,omitempty"`
	Title        string           `json:"title"`
	State        string           `json:"state"`
	Visibility   string           `json:"visibility"`
	License      string           `json:"license"`
	Tags         []string         `json:"tags,omitempty"`
	ExtrasCount  int              `json:"extras_count"`
	ExtrasSample []kadi.Extra     `json:"extras_sample"`
	Nested       []NestedField    `json:"nested,omitempty"`
}

// NestedField names a dict or list extra.
type NestedField struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// Preview builds the request a sync of note would send with the seeded
// defaults. Nothing is sent and the remote service need not be configured.
func (e *Engine) Preview(ctx context.Context, note models.Note) (*Preview, error) {
	h, err := e.host.Header(ctx, note)
	if err != nil {
		return nil, err
	}
	fields := frontmatter.Extract(note.Basename, h)
	op := operationOf(fields)
	return e.preview(note, h, fields, op, e.seed(fields, h)), nil
}

func (e *Engine) preview(note models.Note, h *frontmatter.Header, fields frontmatter.ControlFields, op models.Operation, c Confirmation) *Preview {
	extras := kadi.JSONToExtras(e.metadata(note, h, op, e.now()).OrderedMap, convertOptions)
	p := &Preview{
		Operation:    op,
		RecordID:     fields.RecordID,
		Title:        c.Title,
		State:        c.State,
		Visibility:   c.Visibility,
		License:      c.License,
		Tags:         fields.Tags,
		ExtrasCount:  len(extras),
		ExtrasSample: extras[:min(previewSample, len(extras))],
	}
	for _, x := range extras {
		if x.Type == kadi.TypeDict || x.Type == kadi.TypeList {
			p.Nested = append(p.Nested, NestedField{Key: x.Key, Type: x.Type})
		}
	}
	return p
}

// metadata is the custom metadata of h enriched with where the note lives
// and a timestamp keyed by the operation.
func (e *Engine) metadata(note models.Note, h *frontmatter.Header, op models.Operation, now time.Time) *frontmatter.Header {
	meta := frontmatter.Filter(h)
	meta.Set(MetaFilename, note.Path)
	meta.Set(MetaVault, e.host.Name())
	key := MetaCreated
	if op == models.OperationUpdate {
		key = MetaModified
	}
	meta.Set(key, models.FormatTime(now))
	return meta
}

// seed resolves the values the confirmation starts from. State and
// visibility outside the accepted sets fall back to the settings defaults.
func (e *Engine) seed(fields frontmatter.ControlFields, h *frontmatter.Header) Confirmation {
	s := e.settings.Get()
	c := Confirmation{
		Title:      fields.Title,
		State:      s.DefaultState,
		Visibility: s.DefaultVisibility,
		License:    kadi.DefaultLicense,
	}
	if slices.Contains(models.RecordStates, fields.State) {
		c.State = fields.State
	}
	if slices.Contains(models.RecordVisibilities, fields.Visibility) {
		c.Visibility = fields.Visibility
	}
	if v, ok := h.Lookup(frontmatter.KeyLicense); ok {
		if id, ok := v.(string); ok && id != "" {
			c.License = id
		}
	}
	return c
}
