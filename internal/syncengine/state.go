package syncengine

import (
	"sync"

	"github.com/starford/kadisync/internal/models"
)

// tracker holds the runtime part of the state machine: which notes are held
// by a SyncNote call, which have a request in flight, and which failed last.
// Synced and Unsynced are read from the note header.
type tracker struct {
	mu      sync.Mutex
	held    map[string]struct{}
	sending map[string]struct{}
	failed  map[string]string
}

func newTracker() *tracker {
	return &tracker{
		held:    make(map[string]struct{}),
		sending: make(map[string]struct{}),
		failed:  make(map[string]string),
	}
}

// acquire holds path for one SyncNote call. It reports false if another
// call already holds it.
func (t *tracker) acquire(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.held[path]; busy {
		return false
	}
	t.held[path] = struct{}{}
	return true
}

func (t *tracker) release(path string) {
	t.mu.Lock()
	delete(t.held, path)
	delete(t.sending, path)
	t.mu.Unlock()
}

// begin enters Syncing and forgets a previous failure.
func (t *tracker) begin(path string) {
	t.mu.Lock()
	delete(t.failed, path)
	t.sending[path] = struct{}{}
	t.mu.Unlock()
}

func (t *tracker) fail(path, message string) {
	t.mu.Lock()
	delete(t.sending, path)
	t.failed[path] = message
	t.mu.Unlock()
}

// runtime returns the state known without reading the note. ok is false
// when the header decides.
func (t *tracker) runtime(path string) (state models.State, message string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.sending[path]; busy {
		return models.StateSyncing, "", true
	}
	if msg, failed := t.failed[path]; failed {
		return models.StateError, msg, true
	}
	return models.StateUnsynced, "", false
}
