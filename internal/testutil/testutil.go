// Package testutil provides shared test helpers for setting up vaults and journals.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/starford/vaultfix/internal/journal"
	"github.com/starford/vaultfix/internal/storage"
)

// TestJournal creates a temporary SQLite journal that is automatically cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	db, err := journal.Open(filepath.Join(t.TempDir(), "vaultfix-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNotes writes each path -> content pair under dir.
func WriteNotes(t *testing.T, dir string, notes map[string]string) {
	t.Helper()
	for rel, content := range notes {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// ReadNote returns the content of rel under dir, failing the test if absent.
func ReadNote(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// ListNotes returns every file under dir as sorted slash paths.
func ListNotes(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(out)
	return out
}

// ErrInjected is the error FailingStore returns for the paths it fails.
var ErrInjected = errors.New("injected failure")

// FailingStore wraps a storage.Provider and fails one operation for one
// vault-relative path. Empty fields fail nothing.
type FailingStore struct {
	storage.Provider
	FailRead  string
	FailWrite string
	FailMove  string
}

func (s FailingStore) Read(p string) ([]byte, error) {
	if p == s.FailRead {
		return nil, ErrInjected
	}
	return s.Provider.Read(p)
}

func (s FailingStore) Write(p string, content []byte) error {
	if p == s.FailWrite {
		return ErrInjected
	}
	return s.Provider.Write(p, content)
}

func (s FailingStore) Move(oldPath, newPath string) error {
	if oldPath == s.FailMove {
		return ErrInjected
	}
	return s.Provider.Move(oldPath, newPath)
}
