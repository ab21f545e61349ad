// Package fixup holds the text rewrites that prepare an exported vault for
// identifier assignment: filename repair, front-matter repair, link format
// conversion and indentation.
package fixup

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/starford/vaultfix/internal/parser"
	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
)

// Result summarizes a rewrite step.
type Result struct {
	Scanned  int
	Modified int
	Changes  int
	Failed   int
}

// Fields returns the counters keyed by their report names.
func (r Result) Fields() map[string]int {
	return map[string]int{
		"files_scanned":  r.Scanned,
		"files_modified": r.Modified,
		"changes":        r.Changes,
		"failed":         r.Failed,
	}
}

// rewriteFunc returns the new content of a note and how many edits it made.
type rewriteFunc func(path string, data []byte) ([]byte, int)

// rewriteAll applies fn to every note and writes back the ones it changed.
// Per-file failures are reported and skipped.
func rewriteAll(ctx context.Context, store storage.Provider, rep *report.Report, action string, fn rewriteFunc) (Result, error) {
	var res Result
	files, err := store.List("")
	if err != nil {
		return res, fmt.Errorf("fixup: list vault: %w", err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		data, err := store.Read(f.Path)
		if err != nil {
			res.Failed++
			rep.Event("skip-read-error", f.Path, "", err.Error())
			continue
		}
		out, n := fn(f.Path, data)
		if n == 0 || bytes.Equal(out, data) {
			continue
		}
		if err := store.Write(f.Path, out); err != nil {
			res.Failed++
			rep.Event("error", f.Path, "", err.Error())
			continue
		}
		res.Modified++
		res.Changes += n
		rep.Event(action, f.Path, "", fmt.Sprintf("%d change(s)", n))
	}
	rep.Log("")
	rep.Logf("scanned %d files, modified %d, %d change(s)", res.Scanned, res.Modified, res.Changes)
	return res, nil
}

// mapLines applies fn to every line outside fenced code blocks and returns
// the joined result with the total edit count.
func mapLines(content string, fn func(line string) (string, int)) (string, int) {
	lines := strings.Split(content, "\n")
	total := 0
	var fence parser.Fence
	for i, line := range lines {
		if fence.Step(line) {
			continue
		}
		out, n := fn(line)
		lines[i] = out
		total += n
	}
	return strings.Join(lines, "\n"), total
}
