package uid

import (
	"github.com/starford/vaultfix/internal/models"
	"github.com/starford/vaultfix/internal/storage"
)

// Allocator hands out identifiers that are unused both on disk anywhere in
// the vault and in the truncation map. The on-disk set is scanned once per
// run; callers report every rename through Occupy and Vacate so the cache
// tracks the tree.
type Allocator struct {
	occupied map[string][]string // uid -> vault-relative paths
	reserved func(id string) bool
	next     int
}

// NewAllocator seeds the occupied set from notes. reserved reports
// identifiers claimed by the map; it may be nil.
func NewAllocator(notes []models.NoteMetadata, reserved func(id string) bool) *Allocator {
	a := &Allocator{
		occupied: make(map[string][]string),
		reserved: reserved,
		next:     1,
	}
	for _, n := range notes {
		if u, ok := Classify(n.Name).(UIDNamed); ok {
			a.occupied[u.ID] = append(a.occupied[u.ID], n.Path)
		}
	}
	return a
}

// Scan builds an Allocator from the current vault contents.
func Scan(store storage.Provider, reserved func(id string) bool) (*Allocator, error) {
	notes, err := store.List("")
	if err != nil {
		return nil, err
	}
	return NewAllocator(notes, reserved), nil
}

// AllocateFrom searches upward from start and returns the first free
// identifier together with the index to resume from.
func (a *Allocator) AllocateFrom(start int) (string, int) {
	if start < 1 {
		start = 1
	}
	for i := start; ; i++ {
		id := Format(i)
		if len(a.occupied[id]) > 0 {
			continue
		}
		if a.reserved != nil && a.reserved(id) {
			continue
		}
		return id, i + 1
	}
}

// Allocate returns the next free identifier of this run.
func (a *Allocator) Allocate() string {
	id, next := a.AllocateFrom(a.next)
	a.next = next
	return id
}

// Locate returns the vault-relative path of the file named after id.
func (a *Allocator) Locate(id string) (string, bool) {
	paths := a.occupied[id]
	if len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

// Occupy records that path now carries id.
func (a *Allocator) Occupy(id, path string) {
	a.occupied[id] = append(a.occupied[id], path)
}

// Vacate records that path no longer carries id.
func (a *Allocator) Vacate(id, path string) {
	paths := a.occupied[id]
	for i, p := range paths {
		if p == path {
			a.occupied[id] = append(paths[:i:i], paths[i+1:]...)
			break
		}
	}
	if len(a.occupied[id]) == 0 {
		delete(a.occupied, id)
	}
}
