// Package vault exposes a directory of Markdown notes as the host capability
// surface of the sync engine: reading notes, a cached view of their headers,
// and atomic header patches.
package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/checksum"
	"github.com/starford/kadisync/internal/frontmatter"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/parser"
	"github.com/starford/kadisync/internal/storage"
)

type cachedHeader struct {
	sum    string
	header *frontmatter.Header
}

// Vault implements the host operations over a storage.Provider.
type Vault struct {
	store storage.Provider
	name  string

	mu    sync.Mutex
	cache map[string]cachedHeader
	locks map[string]*sync.Mutex
}

// New creates a Vault. An empty name falls back to the base name of the
// store's root directory.
func New(store storage.Provider, name string) *Vault {
	if name == "" {
		name = filepath.Base(store.Root())
	}
	return &Vault{
		store: store,
		name:  name,
		cache: make(map[string]cachedHeader),
		locks: make(map[string]*sync.Mutex),
	}
}

// Name is the collection name reported as obsidian_vault.
func (v *Vault) Name() string { return v.name }

// Store returns the underlying provider.
func (v *Vault) Store() storage.Provider { return v.store }

// Note resolves a vault path to an existing note.
func (v *Vault) Note(path string) (models.Note, error) {
	note := models.NewNote(path)
	if _, err := v.store.Read(note.Path); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

// Read returns the raw text of note.
func (v *Vault) Read(ctx context.Context, note models.Note) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := v.store.Read(note.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Header returns the structured header of note, or nil if it has none. The
// decoded header is cached per content checksum; callers get their own copy.
func (v *Vault) Header(ctx context.Context, note models.Note) (*frontmatter.Header, error) {
	content, err := v.Read(ctx, note)
	if err != nil {
		return nil, err
	}
	return v.headerOf(note.Path, content)
}

func (v *Vault) headerOf(path, content string) (*frontmatter.Header, error) {
	sum := checksum.String(content)

	v.mu.Lock()
	c, ok := v.cache[path]
	v.mu.Unlock()
	if ok && c.sum == sum {
		return cloneOrNil(c.header), nil
	}

	h, _, err := frontmatter.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("vault: %s: %w: %v", path, apperr.ErrValidation, err)
	}

	v.mu.Lock()
	v.cache[path] = cachedHeader{sum: sum, header: h}
	v.mu.Unlock()
	return cloneOrNil(h), nil
}

func cloneOrNil(h *frontmatter.Header) *frontmatter.Header {
	if h == nil {
		return nil
	}
	return h.Clone()
}

// Tags returns the note's header tags followed by the #tags of its body.
func (v *Vault) Tags(ctx context.Context, note models.Note) ([]string, error) {
	content, err := v.Read(ctx, note)
	if err != nil {
		return nil, err
	}
	h, err := v.headerOf(note.Path, content)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, sources := range [][]string{frontmatter.Extract(note.Basename, h).Tags, parser.InlineTags(content)} {
		for _, t := range sources {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out, nil
}

// ProcessFrontmatter applies fn to the header of note and writes the result
// back. Only keys fn changed are re-encoded; every other byte of the note is
// kept. Calls for the same note are serialized. It returns the checksum of
// the content now on disk.
func (v *Vault) ProcessFrontmatter(ctx context.Context, note models.Note, fn func(*frontmatter.Header) error) (string, error) {
	lock := v.lockFor(note.Path)
	lock.Lock()
	defer lock.Unlock()

	content, err := v.Read(ctx, note)
	if err != nil {
		return "", err
	}
	before, err := v.headerOf(note.Path, content)
	if err != nil {
		return "", err
	}
	after := before.Clone()
	if err := fn(after); err != nil {
		return "", err
	}

	updated, err := frontmatter.Rewrite(content, before, after)
	if err != nil {
		return "", fmt.Errorf("vault: patch %s: %w", note.Path, err)
	}
	if updated == content {
		return checksum.String(content), nil
	}
	if err := v.store.Write(note.Path, []byte(updated)); err != nil {
		return "", err
	}
	return checksum.String(updated), nil
}

func (v *Vault) lockFor(path string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[path]
	if !ok {
		l = &sync.Mutex{}
		v.locks[path] = l
	}
	return l
}

// SaveFile creates a new file in the vault. Existing files are never
// overwritten.
func (v *Vault) SaveFile(path string, content []byte) error {
	return v.store.Create(path, content)
}
