package aliaslink

import (
	"context"
	"fmt"

	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
	"github.com/starford/vaultfix/internal/title"
	"github.com/starford/vaultfix/internal/truncmap"
)

// Result summarizes a rewrite run.
type Result struct {
	FilesScanned  int
	FilesModified int
	Rewritten     int
	Healed        int
	Failed        int
}

// Fields returns the counters keyed by their report names.
func (r Result) Fields() map[string]int {
	return map[string]int{
		"files_scanned":   r.FilesScanned,
		"files_modified":  r.FilesModified,
		"links_rewritten": r.Rewritten,
		"links_healed":    r.Healed,
		"files_failed":    r.Failed,
	}
}

// Rewriter applies RewriteText to every note of a vault.
type Rewriter struct {
	store  storage.Provider
	m      *truncmap.Map
	marker string
	rep    *report.Report
}

// New returns a Rewriter using the finalized map m. An empty marker falls
// back to title.AliasMarker.
func New(store storage.Provider, m *truncmap.Map, marker string, rep *report.Report) *Rewriter {
	if marker == "" {
		marker = title.AliasMarker
	}
	if rep == nil {
		rep = report.New("alias")
	}
	return &Rewriter{store: store, m: m, marker: marker, rep: rep}
}

// Run rewrites links across the vault. A note that cannot be read or
// written is reported and skipped.
func (w *Rewriter) Run(ctx context.Context) (Result, error) {
	var res Result
	files, err := w.store.List("")
	if err != nil {
		return res, fmt.Errorf("aliaslink: list vault: %w", err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.FilesScanned++
		data, err := w.store.Read(f.Path)
		if err != nil {
			res.Failed++
			w.rep.Event("skip-read-error", f.Path, "", err.Error())
			continue
		}
		out, changes := RewriteText(string(data), w.m, w.marker)
		if len(changes) == 0 {
			continue
		}
		if err := w.store.Write(f.Path, []byte(out)); err != nil {
			res.Failed++
			w.rep.Event("error", f.Path, "", err.Error())
			continue
		}
		res.FilesModified++
		for _, c := range changes {
			if c.Kind == KindHeal {
				res.Healed++
			} else {
				res.Rewritten++
			}
			w.rep.Event(string(c.Kind), f.Path, "", fmt.Sprintf("line %d: %s -> %s", c.Line, c.From, c.To))
		}
	}

	w.rep.Log("")
	w.rep.Logf("files modified: %d", res.FilesModified)
	w.rep.Logf("links rewritten: %d, healed: %d", res.Rewritten, res.Healed)
	if res.Failed > 0 {
		w.rep.Logf("files failed: %d", res.Failed)
	}
	return res, nil
}
