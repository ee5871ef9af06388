package settings

import (
	"fmt"
	"sync"

	pkgconfig "github.com/starford/kadisync/pkg/config"
)

// Listener is called with the new settings after every successful save.
type Listener func(Settings)

// Store loads the settings once and persists every change.
type Store struct {
	path string

	mu        sync.RWMutex
	current   Settings
	listeners []Listener
}

// Open reads path over Defaults. A missing file yields the defaults.
func Open(path string) (*Store, error) {
	s := Defaults()
	if _, err := pkgconfig.LoadIfExists(path, &s); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	normalize(&s)
	return &Store{path: path, current: s}, nil
}

// Get returns a copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current.Clone()
}

// OnChange registers l for every later save.
func (st *Store) OnChange(l Listener) {
	st.mu.Lock()
	st.listeners = append(st.listeners, l)
	st.mu.Unlock()
}

// Save validates and persists s, then notifies listeners.
func (st *Store) Save(s Settings) error {
	normalize(&s)
	st.mu.Lock()
	if s.Token == TokenMask {
		s.Token = st.current.Token
	}
	if err := pkgconfig.Save(st.path, &s); err != nil {
		st.mu.Unlock()
		return fmt.Errorf("settings: %w", err)
	}
	st.current = s.Clone()
	listeners := append([]Listener(nil), st.listeners...)
	st.mu.Unlock()

	for _, l := range listeners {
		l(s.Clone())
	}
	return nil
}

// Update applies fn to a copy of the current settings and saves the result.
func (st *Store) Update(fn func(*Settings)) error {
	s := st.Get()
	fn(&s)
	return st.Save(s)
}

func normalize(s *Settings) {
	if s.CustomMetadataMapping == nil {
		s.CustomMetadataMapping = map[string]string{}
	}
	if s.TagFilter == nil {
		s.TagFilter = []string{}
	}
	if s.ExcludeFolders == nil {
		s.ExcludeFolders = []string{}
	}
}
