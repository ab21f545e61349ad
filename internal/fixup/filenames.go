package fixup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
)

// RenameMap maps a note's old vault-relative path to its new one.
type RenameMap map[string]string

// RenameResult summarizes FixFilenames.
type RenameResult struct {
	Scanned int
	Renamed RenameMap
	Failed  int
}

// Fields returns the counters keyed by their report names.
func (r RenameResult) Fields() map[string]int {
	return map[string]int{
		"files_scanned": r.Scanned,
		"renamed":       len(r.Renamed),
		"failed":        r.Failed,
	}
}

// FixFilenames trims invalid trailing characters from note filenames. A
// trimmed name that is already taken gets " (n)" appended. When mapPath is
// set, the renames are merged into the JSON rename map stored there.
func FixFilenames(ctx context.Context, store storage.Provider, rep *report.Report, mapPath string) (RenameResult, error) {
	res := RenameResult{Renamed: RenameMap{}}
	files, err := store.List("")
	if err != nil {
		return res, fmt.Errorf("fixup: list vault: %w", err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		ext := path.Ext(f.Name)
		stem := strings.TrimSuffix(f.Name, ext)
		clean := strings.TrimRightFunc(stem, IsInvalidTail)
		if clean == stem {
			continue
		}
		if clean == "" {
			res.Failed++
			rep.Event("skip-empty-name", f.Path, "", "nothing left after trimming")
			continue
		}

		dir := path.Dir(f.Path)
		dest := path.Join(dir, clean+ext)
		for n := 1; store.Exists(dest); n++ {
			dest = path.Join(dir, fmt.Sprintf("%s (%d)%s", clean, n, ext))
		}
		if err := store.Move(f.Path, dest); err != nil {
			res.Failed++
			rep.Event("error", f.Path, dest, err.Error())
			continue
		}
		res.Renamed[f.Path] = dest
		rep.Event("rename", f.Path, dest, "")
	}

	rep.Log("")
	if len(res.Renamed) == 0 {
		rep.Log("no filenames needed trimming")
		return res, nil
	}
	rep.Logf("renamed %d file(s)", len(res.Renamed))
	if mapPath != "" {
		merged, err := LoadRenameMap(mapPath)
		if err != nil {
			rep.Logf("existing rename map ignored: %v", err)
			merged = RenameMap{}
		}
		for k, v := range res.Renamed {
			merged[k] = v
		}
		if err := SaveRenameMap(mapPath, merged); err != nil {
			return res, err
		}
		rep.Logf("rename map saved to %s", mapPath)
	}
	return res, nil
}

// LoadRenameMap reads a rename map. A missing file yields an empty map.
func LoadRenameMap(p string) (RenameMap, error) {
	data, err := os.ReadFile(storage.SafePath(p))
	if err != nil {
		if storage.IsNotExist(err) {
			return RenameMap{}, nil
		}
		return nil, fmt.Errorf("fixup: read rename map: %w", err)
	}
	m := RenameMap{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("fixup: decode rename map: %w", err)
	}
	return m, nil
}

// SaveRenameMap writes m as indented JSON.
func SaveRenameMap(p string, m RenameMap) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("fixup: encode rename map: %w", err)
	}
	if err := storage.WriteFileAtomic(p, buf.Bytes()); err != nil {
		return fmt.Errorf("fixup: save rename map: %w", err)
	}
	return nil
}
