package fixup

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
)

// Finding is one note whose filename ends in characters that break syncing
// or linking on some platforms.
type Finding struct {
	Path     string
	Trailing string
}

// Codepoints renders the trailing characters as \uXXXX escapes.
func (f Finding) Codepoints() string {
	var b strings.Builder
	for _, r := range f.Trailing {
		fmt.Fprintf(&b, "\\u%04x", r)
	}
	return b.String()
}

// CheckResult lists the problems found by Check.
type CheckResult struct {
	Scanned int
	Invalid []Finding
	Empty   []string
}

// Fields returns the counters keyed by their report names.
func (r CheckResult) Fields() map[string]int {
	return map[string]int{
		"files_scanned": r.Scanned,
		"invalid_names": len(r.Invalid),
		"empty_files":   len(r.Empty),
	}
}

// IsInvalidTail reports whether r may not end a filename stem.
func IsInvalidTail(r rune) bool {
	switch r {
	case ' ', '.', '\u200b', '\u00a0', '\u3000':
		return true
	}
	return unicode.Is(unicode.C, r)
}

// TrailingInvalid returns the run of invalid characters ending stem.
func TrailingInvalid(stem string) string {
	trimmed := strings.TrimRightFunc(stem, IsInvalidTail)
	return stem[len(trimmed):]
}

// Check reports notes with invalid trailing filename characters and notes
// that are completely empty. It changes nothing.
func Check(ctx context.Context, store storage.Provider, rep *report.Report) (CheckResult, error) {
	var res CheckResult
	files, err := store.List("")
	if err != nil {
		return res, fmt.Errorf("fixup: list vault: %w", err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		if tail := TrailingInvalid(f.Stem()); tail != "" {
			fd := Finding{Path: f.Path, Trailing: tail}
			res.Invalid = append(res.Invalid, fd)
			rep.Event("invalid-trailing", f.Path, "", fmt.Sprintf("%q [%s]", tail, fd.Codepoints()))
		}
		data, err := store.Read(f.Path)
		if err != nil {
			rep.Event("skip-read-error", f.Path, "", err.Error())
			continue
		}
		if len(data) == 0 {
			res.Empty = append(res.Empty, f.Path)
			rep.Event("empty-file", f.Path, "", "")
		}
	}

	rep.Log("")
	if len(res.Invalid) == 0 {
		rep.Log("all filenames end cleanly")
	} else {
		rep.Logf("%d filename(s) with invalid trailing characters", len(res.Invalid))
	}
	rep.Logf("%d empty file(s)", len(res.Empty))
	return res, nil
}
