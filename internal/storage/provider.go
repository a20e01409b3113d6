// Package storage defines the project file-system abstraction used for
// instruction documents, rule fragments, and memory notes.
package storage

import "time"

// FileInfo describes one markdown file returned by List.
type FileInfo struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for file operations rooted at a directory.
// All paths are relative to the root.
type Provider interface {
	// List returns every .md file under dir.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// ReadOrEmpty is Read, but a missing file yields empty content.
	ReadOrEmpty(path string) ([]byte, error)
	// Exists reports whether path exists.
	Exists(path string) bool
	// Write atomically replaces the file at path, creating parent dirs.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Root returns the absolute root directory.
	Root() string
}
