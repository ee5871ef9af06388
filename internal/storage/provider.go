// Package storage defines the vault file-system abstraction.
package storage

import "time"

// FileInfo describes a Markdown file of the vault.
type FileInfo struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for vault file operations. Paths are relative to
// the vault root.
type Provider interface {
	// List returns every .md file under dir.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Create writes a new file and fails if path already exists.
	Create(path string, content []byte) error
	// Root is the absolute vault directory.
	Root() string
}
