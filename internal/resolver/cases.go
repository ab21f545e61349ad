package resolver

import (
	"fmt"
	"path"
	"strings"

	"github.com/starford/vaultfix/internal/checksum"
	"github.com/starford/vaultfix/internal/parser"
	"github.com/starford/vaultfix/internal/title"
	"github.com/starford/vaultfix/internal/truncmap"
	"github.com/starford/vaultfix/internal/uid"
)

// resolve is the shared pass 1 logic for UID-named and truncated
// conventionally named notes.
func (r *Resolver) resolve(n note) error {
	if expected, ok := r.m.UIDFor(n.cleaned); ok {
		return r.resolveRegistered(n, expected)
	}
	return r.resolveNew(n)
}

func (r *Resolver) resolveRegistered(n note, expected string) error {
	occupant, occupied := r.alloc.Locate(expected)
	if id, ok := n.name.(uid.UIDNamed); ok && id.ID == expected && (!occupied || occupant == n.path) {
		r.rep.Event("noop-consistent", n.path, "", "")
		return nil
	}

	dest := path.Join(path.Dir(n.path), uid.FileName(expected))
	if !occupied {
		if err := r.rename(n, dest, expected); err != nil {
			return err
		}
		r.stats.RenamesToUID++
		r.rep.Event("rename-to-expected-uid", n.path, dest, "")
		return nil
	}

	occ, err := r.readNote(occupant)
	if err != nil {
		return fmt.Errorf("read occupant %s: %w", occupant, err)
	}
	if occ.cleaned == n.cleaned {
		if checksum.Same(n.data, occ.data) {
			return r.deleteDuplicate(n, occupant, "delete-duplicate")
		}
		return r.serializeNew(n, r.baseKeyFor(expected, n.cleaned), "serialize-newuid")
	}

	moved, err := r.quarantine(occ)
	if err != nil {
		return err
	}
	r.rep.Event("preempt-occupier-to-temp", occupant, moved, "")
	if err := r.rename(n, dest, expected); err != nil {
		return err
	}
	r.stats.RenamesToUID++
	r.rep.Event("rename-to-expected-uid", n.path, dest, "")
	return nil
}

func (r *Resolver) resolveNew(n note) error {
	switch name := n.name.(type) {
	case uid.UIDNamed:
		if r.m.HasUID(name.ID) {
			moved, err := r.quarantine(n)
			if err != nil {
				return err
			}
			r.rep.Event("uid-conflict-move-temp", n.path, moved, "")
			return nil
		}
		key := title.UniquifyKey(synthesizedKey(n.cleaned, r.threshold), r.m.HasKey)
		if err := r.m.Register(key, truncmap.Entry{UID: name.ID, FullSentence: n.cleaned}); err != nil {
			return err
		}
		r.stats.SupplementalEntriesAdded++
		r.rep.Event("register-uid-file", n.path, "", "key="+key)
		return nil

	case uid.Conventional:
		id := r.alloc.Allocate()
		dest := path.Join(path.Dir(n.path), uid.FileName(id))
		if err := r.rename(n, dest, id); err != nil {
			return err
		}
		key := title.UniquifyKey(title.Normalize(title.RemoveTrailingNumber(name.Stem)), r.m.HasKey)
		if err := r.m.Register(key, truncmap.Entry{UID: id, FullSentence: n.cleaned}); err != nil {
			return err
		}
		r.stats.NewUIDAssigned++
		r.stats.RenamesToUID++
		r.stats.SupplementalEntriesAdded++
		r.rep.Event("general-newuid", n.path, dest, "key="+key)
		return nil
	}
	return fmt.Errorf("unexpected name %T in pass 1", n.name)
}

// resolveTemp settles one quarantined note against the rebuilt indices. A
// registered identifier whose file is missing is never reclaimed.
func (r *Resolver) resolveTemp(n note) error {
	expected, ok := r.m.UIDFor(n.cleaned)
	if !ok {
		return r.serializeNew(n, synthesizedKey(n.cleaned, r.threshold), "temp-newuid-fresh")
	}

	occupant, occupied := r.alloc.Locate(expected)
	if !occupied {
		r.stats.OrphanTargetsSeen++
		return r.serializeNew(n, r.baseKeyFor(expected, n.cleaned), "temp-newuid-orphan-map")
	}

	occ, err := r.readNote(occupant)
	if err != nil {
		return fmt.Errorf("read occupant %s: %w", occupant, err)
	}
	if occ.cleaned == n.cleaned && checksum.Same(n.data, occ.data) {
		return r.deleteDuplicate(n, occupant, "delete-duplicate-temp")
	}
	return r.serializeNew(n, r.baseKeyFor(expected, n.cleaned), "temp-serialize-newuid")
}

// serializeNew gives n a fresh identifier and map entry, suffixing its
// sentence with " (n)" first when the sentence is already registered.
func (r *Resolver) serializeNew(n note, baseKey, action string) error {
	full := title.Serialize(n.cleaned, r.m.HasFull)
	if full != n.cleaned {
		if err := r.store.Write(n.path, rewriteHeadline(n.data, n.cleaned, full)); err != nil {
			return fmt.Errorf("write serialized headline: %w", err)
		}
		r.stats.ConflictsSerialized++
	}

	id := r.alloc.Allocate()
	dest := path.Join(path.Dir(n.path), uid.FileName(id))
	if err := r.rename(n, dest, id); err != nil {
		return err
	}
	key := title.UniquifyKey(baseKey, r.m.HasKey)
	if err := r.m.Register(key, truncmap.Entry{UID: id, FullSentence: full}); err != nil {
		return err
	}

	r.stats.NewUIDAssigned++
	r.stats.RenamesToUID++
	r.stats.SupplementalEntriesAdded++
	if _, ok := n.name.(uid.Temp); ok {
		r.stats.TempsRepaired++
	}
	r.rep.Event(action, n.path, dest, "key="+key)
	return nil
}

func (r *Resolver) deleteDuplicate(n note, kept, action string) error {
	if err := r.store.Delete(n.path); err != nil {
		return err
	}
	if id, ok := n.name.(uid.UIDNamed); ok {
		r.alloc.Vacate(id.ID, n.path)
	}
	r.stats.DuplicatesDeleted++
	r.rep.Event(action, n.path, kept, "")
	return nil
}

// baseKeyFor returns the key registered for id, or a synthesized one.
func (r *Resolver) baseKeyFor(id, cleaned string) string {
	if key, ok := r.m.KeyForUID(id); ok {
		return key
	}
	return synthesizedKey(cleaned, r.threshold)
}

func synthesizedKey(cleaned string, threshold int) string {
	if key := title.SynthesizeKey(cleaned, threshold); key != "" {
		return key
	}
	return cleaned
}

// rename moves n to dest, which will carry id, and keeps the allocator's
// view of the tree current. The destination is never overwritten.
func (r *Resolver) rename(n note, dest, id string) error {
	if dest == n.path {
		return nil
	}
	if err := r.store.Move(n.path, dest); err != nil {
		return err
	}
	if old, ok := n.name.(uid.UIDNamed); ok {
		r.alloc.Vacate(old.ID, n.path)
	}
	r.alloc.Occupy(id, dest)
	return nil
}

// quarantine moves n aside to the first free uid_fix_temp(k).md in its
// directory and returns the new path.
func (r *Resolver) quarantine(n note) (string, error) {
	dir := path.Dir(n.path)
	for k := 1; ; k++ {
		dest := path.Join(dir, uid.TempFileName(k))
		if r.store.Exists(dest) {
			continue
		}
		if err := r.store.Move(n.path, dest); err != nil {
			return "", err
		}
		if id, ok := n.name.(uid.UIDNamed); ok {
			r.alloc.Vacate(id.ID, n.path)
		}
		return dest, nil
	}
}

// rewriteHeadline replaces the first content line so that it cleans to
// full, keeping heading or list decoration when it survives the edit.
func rewriteHeadline(data []byte, cleaned, full string) []byte {
	line := parser.FirstContentLine(data)
	if i := strings.LastIndex(line, cleaned); i >= 0 {
		cand := line[:i] + full + line[i+len(cleaned):]
		if title.Clean(cand) == full {
			return parser.ReplaceFirstContentLine(data, cand)
		}
	}
	return parser.ReplaceFirstContentLine(data, full)
}
