package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/checksum"
	"github.com/starford/kadisync/internal/models"
)

// DefaultAutoSyncDelay is how long a note must stay unchanged before it is
// synced automatically.
const DefaultAutoSyncDelay = 2 * time.Second

type dueNote struct {
	path string
	gen  uint64
}

// AutoSync syncs notes after they were saved, when the autoSyncOnSave
// setting is on. Confirmation is automatic.
//
// Concurrency model: Run owns the debounce timers; Saved only hands paths
// to it through a channel.
type AutoSync struct {
	engine    *Engine
	delay     time.Duration
	confirmer Confirmer

	saved chan string
	due   chan dueNote
}

// NewAutoSync creates an AutoSync. A non-positive delay means
// DefaultAutoSyncDelay.
func NewAutoSync(e *Engine, delay time.Duration) *AutoSync {
	if delay <= 0 {
		delay = DefaultAutoSyncDelay
	}
	return &AutoSync{
		engine:    e,
		delay:     delay,
		confirmer: AutoConfirmer{},
		saved:     make(chan string, 64),
		due:       make(chan dueNote),
	}
}

// Saved reports a note write. It never blocks; writes arriving while the
// queue is full are dropped.
func (a *AutoSync) Saved(kind, path string) {
	if kind == "deleted" {
		return
	}
	select {
	case a.saved <- path:
	default:
		a.engine.logger.Warn("auto-sync: queue full, dropping", slog.String("path", path))
	}
}

// Run processes saved notes until ctx is done.
func (a *AutoSync) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	timers := make(map[string]*time.Timer)
	gens := make(map[string]uint64)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case path := <-a.saved:
			if !a.enabled(path) {
				continue
			}
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			gens[path]++
			d := dueNote{path: path, gen: gens[path]}
			timers[path] = time.AfterFunc(a.delay, func() {
				select {
				case a.due <- d:
				case <-ctx.Done():
				}
			})

		case d := <-a.due:
			if gens[d.path] != d.gen {
				continue
			}
			delete(timers, d.path)
			delete(gens, d.path)
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.sync(ctx, d.path)
			}()
		}
	}
}

func (a *AutoSync) enabled(path string) bool {
	s := a.engine.settings.Get()
	return s.AutoSyncOnSave && s.Configured() && models.NewNote(path).Extension == models.NoteExtension
}

func (a *AutoSync) sync(ctx context.Context, path string) {
	logger := a.engine.logger.With(slog.String("path", path))
	note := models.NewNote(path)

	content, err := a.engine.host.Read(ctx, note)
	if err != nil {
		logger.Debug("auto-sync: read failed", slog.String("error", err.Error()))
		return
	}
	if a.engine.OwnWrite(path, checksum.String(content)) {
		logger.Debug("auto-sync: skipping own header write")
		return
	}
	if ok, err := a.engine.ShouldSync(ctx, note); err != nil || !ok {
		logger.Debug("auto-sync: not eligible")
		return
	}

	_, err = a.engine.SyncNote(ctx, note, a.confirmer)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrSyncInProgress), errors.Is(err, apperr.ErrNotConfigured), errors.Is(err, context.Canceled):
		logger.Debug("auto-sync: skipped", slog.String("error", err.Error()))
	default:
		logger.Warn("auto-sync: failed", slog.String("error", err.Error()))
	}
}
