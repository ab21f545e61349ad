package truncmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/starford/vaultfix/internal/apperr"
	"github.com/starford/vaultfix/internal/storage"
)

// Load reads the map file at path. It always returns a usable map: a missing
// file yields an empty one, an unreadable or malformed file yields an empty
// one plus an error wrapping apperr.ErrCorruptMap, and inconsistent entries
// are loaded as-is with an error wrapping apperr.ErrConflict. The file is
// never repaired in place.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(storage.SafePath(path))
	if err != nil {
		if storage.IsNotExist(err) {
			return New(), nil
		}
		return New(), fmt.Errorf("%w: read %s: %v", apperr.ErrCorruptMap, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return New(), fmt.Errorf("%w: decode %s: %v", apperr.ErrCorruptMap, path, err)
	}
	for k, e := range raw {
		if e.UID == "" || e.FullSentence == "" {
			return New(), fmt.Errorf("%w: entry %q lacks uid or full_sentence", apperr.ErrCorruptMap, k)
		}
	}
	return FromEntries(raw)
}

// Save writes m as indented UTF-8 JSON, creating parent directories.
func Save(path string, m *Map) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.entries); err != nil {
		return fmt.Errorf("truncmap: encode: %w", err)
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("truncmap: save %s: %w", path, err)
	}
	return nil
}
