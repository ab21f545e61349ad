// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/vaultfix/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// Root returns the absolute vault directory.
	Root() string
	// List returns metadata for every .md file under dir (relative to vault root),
	// in lexical walk order.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to vault root).
	// It fails with apperr.ErrAlreadyExists when newPath is occupied.
	Move(oldPath, newPath string) error
	// Exists reports whether a file is present at path.
	Exists(path string) bool
}
