package syncengine

import (
	"context"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/frontmatter"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/settings"
)

// Host is the document store the engine works against. The engine never
// writes a note except through ProcessFrontmatter.
type Host interface {
	Read(ctx context.Context, note models.Note) (string, error)
	// Header returns the cached structured header, nil when the note has none.
	Header(ctx context.Context, note models.Note) (*frontmatter.Header, error)
	// ProcessFrontmatter applies fn to the header atomically and returns the
	// checksum of the resulting content.
	ProcessFrontmatter(ctx context.Context, note models.Note, fn func(*frontmatter.Header) error) (string, error)
	Tags(ctx context.Context, note models.Note) ([]string, error)
	Name() string
	SaveFile(path string, content []byte) error
}

// RecordService is the part of the remote client the engine calls.
type RecordService interface {
	CreateRecord(ctx context.Context, p kadi.RecordParams) (*kadi.Record, error)
	UpdateRecord(ctx context.Context, id int64, p kadi.RecordParams) (*kadi.Record, error)
	GetCurrentUser(ctx context.Context) (*kadi.User, error)
	RecordURL(id int64) string
}

// ClientSource returns the client for the current settings, or an error
// wrapping apperr.ErrNotConfigured.
type ClientSource func() (RecordService, error)

// ProviderSource adapts a kadi.Provider. A nil client never leaks into the
// interface.
func ProviderSource(p *kadi.Provider) ClientSource {
	return func() (RecordService, error) {
		c, err := p.Current()
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, apperr.ErrNotConfigured
		}
		return c, nil
	}
}

// SettingsSource yields the current settings.
type SettingsSource interface {
	Get() settings.Settings
}

// Notifier shows a transient one-line notice.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// StatusReporter follows a note through the sync lifecycle.
type StatusReporter interface {
	Syncing(note models.Note)
	Synced(note models.Note, recordID int64)
	Failed(note models.Note, message string)
}

// Observer receives every finished sync attempt.
type Observer interface {
	RecordSync(ctx context.Context, ev models.SyncEvent) error
}

// Reporters fans a status out to several reporters.
type Reporters []StatusReporter

func (rs Reporters) Syncing(note models.Note) {
	for _, r := range rs {
		r.Syncing(note)
	}
}

func (rs Reporters) Synced(note models.Note, recordID int64) {
	for _, r := range rs {
		r.Synced(note, recordID)
	}
}

func (rs Reporters) Failed(note models.Note, message string) {
	for _, r := range rs {
		r.Failed(note, message)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(string) {}
