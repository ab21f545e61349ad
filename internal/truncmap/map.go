// Package truncmap holds the persistent key -> {uid, full_sentence} registry
// together with its derived indices.
package truncmap

import (
	"errors"
	"fmt"
	"sort"

	"github.com/starford/vaultfix/internal/apperr"
)

// Uniqueness violations returned by Register and UpdateFullForUID.
var (
	ErrKeyExists      = fmt.Errorf("truncmap: key %w", apperr.ErrAlreadyExists)
	ErrUIDExists      = fmt.Errorf("truncmap: uid %w", apperr.ErrAlreadyExists)
	ErrSentenceExists = fmt.Errorf("truncmap: full sentence %w", apperr.ErrAlreadyExists)
)

// Entry is the durable identity of one note.
type Entry struct {
	UID          string `json:"uid"`
	FullSentence string `json:"full_sentence"`
}

// Map is the truncation registry. Its three indices are only ever changed
// together with the entries, through Register and UpdateFullForUID.
type Map struct {
	entries map[string]Entry

	fullToUID map[string]string
	uidToFull map[string]string
	uidToKey  map[string]string
}

// New returns an empty map.
func New() *Map {
	m := &Map{entries: make(map[string]Entry)}
	m.resetIndices(0)
	return m
}

// FromEntries builds a map from raw entries and rebuilds its indices. The
// returned error describes invariant violations found in entries; the map
// is usable either way.
func FromEntries(entries map[string]Entry) (*Map, error) {
	m := New()
	for k, e := range entries {
		m.entries[k] = e
	}
	return m, m.Rebuild()
}

func (m *Map) resetIndices(n int) {
	m.fullToUID = make(map[string]string, n)
	m.uidToFull = make(map[string]string, n)
	m.uidToKey = make(map[string]string, n)
}

// Rebuild recomputes every index from the entries in key order. Entries that
// share a uid or a full sentence are reported; the later key wins.
func (m *Map) Rebuild() error {
	m.resetIndices(len(m.entries))
	var errs []error
	for _, k := range m.Keys() {
		e := m.entries[k]
		if prev, ok := m.uidToKey[e.UID]; ok {
			errs = append(errs, fmt.Errorf("%w: %q shared by keys %q and %q", apperr.ErrConflict, e.UID, prev, k))
		}
		if prev, ok := m.fullToUID[e.FullSentence]; ok {
			errs = append(errs, fmt.Errorf("%w: sentence %q shared by %s and %s", apperr.ErrConflict, e.FullSentence, prev, e.UID))
		}
		m.fullToUID[e.FullSentence] = e.UID
		m.uidToFull[e.UID] = e.FullSentence
		m.uidToKey[e.UID] = k
	}
	return errors.Join(errs...)
}

// Register adds a new entry. It never overwrites: a key, uid or sentence
// that is already present is rejected with ErrKeyExists, ErrUIDExists or
// ErrSentenceExists.
func (m *Map) Register(key string, e Entry) error {
	if _, ok := m.entries[key]; ok {
		return fmt.Errorf("%w: %q", ErrKeyExists, key)
	}
	if _, ok := m.uidToFull[e.UID]; ok {
		return fmt.Errorf("%w: %q", ErrUIDExists, e.UID)
	}
	if _, ok := m.fullToUID[e.FullSentence]; ok {
		return fmt.Errorf("%w: %q", ErrSentenceExists, e.FullSentence)
	}
	m.entries[key] = e
	m.fullToUID[e.FullSentence] = e.UID
	m.uidToFull[e.UID] = e.FullSentence
	m.uidToKey[e.UID] = key
	return nil
}

// UpdateFullForUID renames the sentence registered for uid, keeping its key.
func (m *Map) UpdateFullForUID(uid, oldFull, newFull string) error {
	key, ok := m.uidToKey[uid]
	if !ok {
		return fmt.Errorf("truncmap: uid %q: %w", uid, apperr.ErrNotFound)
	}
	if cur := m.uidToFull[uid]; cur != oldFull {
		return fmt.Errorf("truncmap: uid %q holds %q, not %q: %w", uid, cur, oldFull, apperr.ErrConflict)
	}
	if owner, ok := m.fullToUID[newFull]; ok && owner != uid {
		return fmt.Errorf("%w: %q", ErrSentenceExists, newFull)
	}
	if m.fullToUID[oldFull] == uid {
		delete(m.fullToUID, oldFull)
	}
	m.fullToUID[newFull] = uid
	m.uidToFull[uid] = newFull
	m.entries[key] = Entry{UID: uid, FullSentence: newFull}
	return nil
}

// UIDFor returns the uid registered for a full sentence.
func (m *Map) UIDFor(full string) (string, bool) {
	uid, ok := m.fullToUID[full]
	return uid, ok
}

// KeyForUID returns the key whose entry holds uid.
func (m *Map) KeyForUID(uid string) (string, bool) {
	k, ok := m.uidToKey[uid]
	return k, ok
}

// ExpectedFull returns the sentence registered for uid.
func (m *Map) ExpectedFull(uid string) (string, bool) {
	s, ok := m.uidToFull[uid]
	return s, ok
}

// HasKey reports whether key is registered.
func (m *Map) HasKey(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// HasUID reports whether some entry holds uid.
func (m *Map) HasUID(uid string) bool {
	_, ok := m.uidToFull[uid]
	return ok
}

// HasFull reports whether some entry holds the sentence.
func (m *Map) HasFull(full string) bool {
	_, ok := m.fullToUID[full]
	return ok
}

// Get returns the entry stored under key.
func (m *Map) Get(key string) (Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Lookup resolves a link target, first as a key and then as a full sentence.
func (m *Map) Lookup(target string) (Entry, bool) {
	if e, ok := m.entries[target]; ok {
		return e, true
	}
	if uid, ok := m.fullToUID[target]; ok {
		return Entry{UID: uid, FullSentence: target}, true
	}
	return Entry{}, false
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.entries) }

// Keys returns all keys in sorted order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns a copy of the raw entries.
func (m *Map) Entries() map[string]Entry {
	out := make(map[string]Entry, len(m.entries))
	for k, e := range m.entries {
		out[k] = e
	}
	return out
}
