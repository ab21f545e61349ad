// Package resolver assigns stable identifiers to notes whose filenames were
// truncated and reconciles the vault against the truncation map.
//
// A run is two sequential passes. Pass 1 handles UID-named and
// conventionally named notes; pass 2, after the map indices are rebuilt,
// settles the quarantined uid_fix_temp(n).md files pass 1 produced.
package resolver

import (
	"context"
	"fmt"
	"path"

	"github.com/starford/vaultfix/internal/parser"
	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
	"github.com/starford/vaultfix/internal/title"
	"github.com/starford/vaultfix/internal/truncmap"
	"github.com/starford/vaultfix/internal/uid"
)

// Resolver owns the state of one run over a vault.
type Resolver struct {
	store     storage.Provider
	m         *truncmap.Map
	rep       *report.Report
	threshold int

	alloc *uid.Allocator
	stats Stats
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold sets the filename byte length from which a leftover
// remainder counts as truncation.
func WithThreshold(n int) Option {
	return func(r *Resolver) { r.threshold = n }
}

// WithReport sets the report that receives events and the summary.
func WithReport(rep *report.Report) Option {
	return func(r *Resolver) { r.rep = rep }
}

// New returns a Resolver over store that mutates m in place.
func New(store storage.Provider, m *truncmap.Map, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		m:         m,
		threshold: title.DefaultThresholdBytes,
	}
	for _, o := range opts {
		o(r)
	}
	if r.rep == nil {
		r.rep = report.New("uid")
	}
	return r
}

// note is one file read for resolution.
type note struct {
	path    string
	name    uid.Name
	data    []byte
	cleaned string
}

func (r *Resolver) readNote(p string) (note, error) {
	data, err := r.store.Read(p)
	if err != nil {
		return note{}, err
	}
	return note{
		path:    p,
		name:    uid.Classify(path.Base(p)),
		data:    data,
		cleaned: title.Clean(parser.FirstContentLine(data)),
	}, nil
}

// Run performs pass 1, rebuilds the indices and performs pass 2. The map is
// left for the caller to persist.
func (r *Resolver) Run(ctx context.Context) (Stats, error) {
	r.stats = Stats{MapEntriesBefore: r.m.Len()}
	r.rep.Logf("threshold_bytes = %d", r.threshold)

	alloc, err := uid.Scan(r.store, r.m.HasUID)
	if err != nil {
		return r.stats, fmt.Errorf("resolver: scan vault: %w", err)
	}
	r.alloc = alloc

	if err := r.Pass1(ctx); err != nil {
		return r.stats, err
	}
	if err := r.m.Rebuild(); err != nil {
		r.rep.Logf("index rebuild reported: %v", err)
	}
	if err := r.Pass2(ctx); err != nil {
		return r.stats, err
	}

	r.stats.MapEntriesAfter = r.m.Len()
	r.stats.summarize(r.rep)
	return r.stats, nil
}

// Pass1 resolves every UID-named and conventionally named note. The file
// list is taken once up front; entries that vanish mid-pass are skipped.
func (r *Resolver) Pass1(ctx context.Context) error {
	files, err := r.store.List("")
	if err != nil {
		return fmt.Errorf("resolver: list vault: %w", err)
	}
	if r.alloc == nil {
		r.alloc = uid.NewAllocator(files, r.m.HasUID)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := uid.Classify(f.Name).(uid.Temp); ok {
			continue
		}
		n, ok := r.load(f.Path)
		if !ok {
			continue
		}
		switch name := n.name.(type) {
		case uid.UIDNamed:
			r.settle(n, r.resolve(n))
		case uid.Conventional:
			if !r.truncated(n, name.Stem) {
				continue
			}
			r.settle(n, r.resolve(n))
		}
	}
	return nil
}

// Pass2 resolves every quarantined file. It must run after Pass1 and an
// index rebuild.
func (r *Resolver) Pass2(ctx context.Context) error {
	files, err := r.store.List("")
	if err != nil {
		return fmt.Errorf("resolver: list vault: %w", err)
	}
	if r.alloc == nil {
		r.alloc = uid.NewAllocator(files, r.m.HasUID)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := uid.Classify(f.Name).(uid.Temp); !ok {
			continue
		}
		n, ok := r.load(f.Path)
		if !ok {
			continue
		}
		r.settle(n, r.resolveTemp(n))
	}

	left, err := r.store.List("")
	if err != nil {
		return fmt.Errorf("resolver: list vault: %w", err)
	}
	for _, f := range left {
		if _, ok := uid.Classify(f.Name).(uid.Temp); ok {
			r.stats.LeftoverTemps++
			r.rep.Event("leftover-temp", f.Path, "", "re-run to settle")
		}
	}
	return nil
}

func (r *Resolver) load(p string) (note, bool) {
	if !r.store.Exists(p) {
		r.stats.Skipped++
		r.rep.Event("skip-vanished", p, "", "")
		return note{}, false
	}
	n, err := r.readNote(p)
	if err != nil {
		r.stats.Skipped++
		r.rep.Event("skip-read-error", p, "", err.Error())
		return note{}, false
	}
	if n.cleaned == "" {
		r.stats.Skipped++
		r.rep.Event("skip-empty", p, "", "no first line")
		return note{}, false
	}
	return n, true
}

// truncated applies the comparator and the truncation check to a
// conventionally named note.
func (r *Resolver) truncated(n note, stem string) bool {
	ok, reason := title.Compare(stem, n.cleaned)
	if !ok {
		r.rep.Event("skip-nonsegbreak", n.path, "", reason)
		return false
	}
	cut, reason := title.IsTruncated(title.Normalize(title.RemoveTrailingNumber(stem)), n.cleaned, r.threshold)
	r.rep.Event("truncation-check", n.path, "", reason)
	return cut
}

func (r *Resolver) settle(n note, err error) {
	if err != nil {
		r.stats.Failed++
		r.rep.Event("error", n.path, "", err.Error())
	}
}
