// Package storage defines the import inbox file-system abstraction.
package storage

import "time"

// Entry describes one pending file in the inbox.
type Entry struct {
	Path     string // relative to the inbox root
	Size     int64
	Checksum string
	ModTime  time.Time
}

// Provider is the interface for inbox file operations.
type Provider interface {
	// Pending returns the files directly under dir whose extension is one of
	// exts (all files when exts is empty). Subdirectories are not descended.
	Pending(dir string, exts ...string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
}
