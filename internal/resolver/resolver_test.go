package resolver

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/starford/vaultfix/internal/storage"
	"github.com/starford/vaultfix/internal/testutil"
	"github.com/starford/vaultfix/internal/truncmap"
)

const (
	longStem     = "Alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron"
	longSentence = longStem + " pi rho end."
)

func runIn(t *testing.T, dir string, m *truncmap.Map) Stats {
	t.Helper()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := New(store, m).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return stats
}

func assertFiles(t *testing.T, dir string, want ...string) {
	t.Helper()
	got := testutil.ListNotes(t, dir)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
}

func TestIdenticalDuplicateIsDeleted(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	content := "# " + longSentence + "\n\nsame body\n"
	testutil.WriteNotes(t, dir, map[string]string{
		"a/" + longStem + ".md": content,
		"b/" + longStem + ".md": content,
	})
	m := truncmap.New()

	stats := runIn(t, dir, m)

	assertFiles(t, dir, "a/uid_001.md")
	if m.Len() != 1 {
		t.Fatalf("map entries = %d, want 1", m.Len())
	}
	e, ok := m.Get(longStem)
	if !ok || e.UID != "uid_001" || e.FullSentence != longSentence {
		t.Errorf("entry = %+v, %v", e, ok)
	}
	if stats.DuplicatesDeleted != 1 || stats.NewUIDAssigned != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCollidingSentenceIsSerialized(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"a/" + longStem + ".md": "# " + longSentence + "\n\nfirst body\n",
		"b/" + longStem + ".md": "# " + longSentence + "\n\nsecond body\n",
	})
	m := truncmap.New()

	stats := runIn(t, dir, m)

	assertFiles(t, dir, "a/uid_001.md", "b/uid_002.md")
	if got := testutil.ReadNote(t, dir, "a/uid_001.md"); !strings.HasPrefix(got, "# "+longSentence+"\n") {
		t.Errorf("original note changed: %q", got)
	}
	if got := testutil.ReadNote(t, dir, "b/uid_002.md"); !strings.HasPrefix(got, "# "+longSentence+" (2)\n") {
		t.Errorf("serialized headline = %q", got)
	}
	if runtime.GOOS != "windows" {
		kept, err := os.Stat(filepath.Join(dir, "a", "uid_001.md"))
		if err != nil {
			t.Fatal(err)
		}
		rewritten, err := os.Stat(filepath.Join(dir, "b", "uid_002.md"))
		if err != nil {
			t.Fatal(err)
		}
		if rewritten.Mode().Perm() != kept.Mode().Perm() {
			t.Errorf("serialized note mode = %o, want %o", rewritten.Mode().Perm(), kept.Mode().Perm())
		}
	}

	first, ok1 := m.Get(longStem)
	second, ok2 := m.Get(longStem + " (2)")
	if !ok1 || !ok2 {
		t.Fatalf("keys = %v", m.Keys())
	}
	if first.UID != "uid_001" || second.UID != "uid_002" {
		t.Errorf("uids = %s, %s", first.UID, second.UID)
	}
	if second.FullSentence != longSentence+" (2)" {
		t.Errorf("serialized sentence = %q", second.FullSentence)
	}
	if stats.ConflictsSerialized != 1 || stats.NewUIDAssigned != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSecondRunIsNoop(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"a/" + longStem + ".md": "# " + longSentence + "\n\nfirst body\n",
		"b/" + longStem + ".md": "# " + longSentence + "\n\nsecond body\n",
	})
	m := truncmap.New()
	runIn(t, dir, m)

	stats := runIn(t, dir, m)
	if stats.NewUIDAssigned != 0 || stats.RenamesToUID != 0 || stats.SupplementalEntriesAdded != 0 {
		t.Errorf("second run changed the vault: %+v", stats)
	}
	assertFiles(t, dir, "a/uid_001.md", "b/uid_002.md")
}

func TestOrphanTargetIsNotReclaimed(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"uid_fix_temp(1).md": "Orphaned sentence\n",
	})
	m := truncmap.New()
	if err := m.Register("Orphaned", truncmap.Entry{UID: "uid_050", FullSentence: "Orphaned sentence"}); err != nil {
		t.Fatal(err)
	}

	stats := runIn(t, dir, m)

	assertFiles(t, dir, "uid_001.md")
	if stats.OrphanTargetsSeen != 1 || stats.TempsRepaired != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if id, _ := m.UIDFor("Orphaned sentence (2)"); id != "uid_001" {
		t.Errorf("new entry uid = %q", id)
	}
	if id, _ := m.UIDFor("Orphaned sentence"); id != "uid_050" {
		t.Errorf("orphan entry changed to %q", id)
	}
}

func TestWrongOccupantIsDisplaced(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		longStem + ".md": longSentence + "\n",
		"uid_001.md":     "Other sentence\n",
	})
	m := truncmap.New()
	if err := m.Register(longStem, truncmap.Entry{UID: "uid_001", FullSentence: longSentence}); err != nil {
		t.Fatal(err)
	}

	stats := runIn(t, dir, m)

	assertFiles(t, dir, "uid_001.md", "uid_002.md")
	if got := testutil.ReadNote(t, dir, "uid_001.md"); got != longSentence+"\n" {
		t.Errorf("uid_001.md = %q", got)
	}
	if got := testutil.ReadNote(t, dir, "uid_002.md"); got != "Other sentence\n" {
		t.Errorf("uid_002.md = %q", got)
	}
	if id, _ := m.UIDFor("Other sentence"); id != "uid_002" {
		t.Errorf("displaced note uid = %q", id)
	}
	if stats.TempsRepaired != 1 || stats.LeftoverTemps != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestUnregisteredUIDFileIsBackfilled(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"uid_007.md": "---\ntags: [a]\n---\n## Some title.\n",
	})
	m := truncmap.New()

	stats := runIn(t, dir, m)

	assertFiles(t, dir, "uid_007.md")
	e, ok := m.Get("Some title")
	if !ok || e.UID != "uid_007" || e.FullSentence != "Some title." {
		t.Errorf("entry = %+v, %v (keys %v)", e, ok, m.Keys())
	}
	if stats.SupplementalEntriesAdded != 1 || stats.RenamesToUID != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestUIDCollisionIsQuarantinedThenReassigned(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"uid_001.md": "Unregistered text\n",
	})
	m := truncmap.New()
	if err := m.Register("Registered", truncmap.Entry{UID: "uid_001", FullSentence: "Registered sentence"}); err != nil {
		t.Fatal(err)
	}

	runIn(t, dir, m)

	assertFiles(t, dir, "uid_002.md")
	if id, _ := m.UIDFor("Unregistered text"); id != "uid_002" {
		t.Errorf("uid = %q", id)
	}
	if id, _ := m.UIDFor("Registered sentence"); id != "uid_001" {
		t.Errorf("existing entry changed to %q", id)
	}
}

func TestNonTruncatedNotesAreLeftAlone(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"Short title.md": "# Short title and more words\n",
		"Random.md":      "Totally different\n",
		"Empty.md":       "---\na: 1\n---\n\n",
	})
	m := truncmap.New()

	stats := runIn(t, dir, m)

	assertFiles(t, dir, "Empty.md", "Random.md", "Short title.md")
	if m.Len() != 0 {
		t.Errorf("map = %v", m.Keys())
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", stats.Skipped)
	}
}

func TestTerminatorRemainderIsTruncation(t *testing.T) {
	dir, _ := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"Meeting notes.md": "Meeting notes.\n",
	})
	m := truncmap.New()

	runIn(t, dir, m)

	assertFiles(t, dir, "uid_001.md")
	if e, ok := m.Get("Meeting notes"); !ok || e.FullSentence != "Meeting notes." {
		t.Errorf("entry = %+v, %v", e, ok)
	}
}

func TestRewriteHeadlineKeepsDecoration(t *testing.T) {
	tests := []struct {
		in, cleaned, full, want string
	}{
		{"# Title\nbody\n", "Title", "Title (2)", "# Title (2)\nbody\n"},
		{"- **Title**\n", "Title", "Title (2)", "- **Title (2)**\n"},
		{"---\na: 1\n---\nTitle 12\n", "Title", "Title (3)", "---\na: 1\n---\nTitle (3) 12\n"},
	}
	for _, tt := range tests {
		got := string(rewriteHeadline([]byte(tt.in), tt.cleaned, tt.full))
		if got != tt.want {
			t.Errorf("rewriteHeadline(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func failureVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir, store := testutil.TestVault(t)
	testutil.WriteNotes(t, dir, map[string]string{
		"a/First " + longStem + ".md":  "# First " + longSentence + "\n",
		"b/Second " + longStem + ".md": "# Second " + longSentence + "\n",
		"c/Third " + longStem + ".md":  "# Third " + longSentence + "\n",
	})
	return dir, store
}

func assertResolved(t *testing.T, dir string, m *truncmap.Map, sub, prefix string) {
	t.Helper()
	e, ok := m.Get(prefix + " " + longStem)
	if !ok {
		t.Fatalf("%s not registered; keys = %v", prefix, m.Keys())
	}
	if got := testutil.ReadNote(t, dir, sub+"/"+e.UID+".md"); !strings.HasPrefix(got, "# "+prefix+" ") {
		t.Errorf("%s/%s.md = %q", sub, e.UID, got)
	}
}

func TestUnreadableNoteIsSkipped(t *testing.T) {
	dir, fsys := failureVault(t)
	failing := "b/Second " + longStem + ".md"
	m := truncmap.New()

	stats, err := New(testutil.FailingStore{Provider: fsys, FailRead: failing}, m).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Skipped != 1 || stats.Failed != 0 || stats.NewUIDAssigned != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if m.Len() != 2 {
		t.Errorf("keys = %v", m.Keys())
	}
	assertResolved(t, dir, m, "a", "First")
	assertResolved(t, dir, m, "c", "Third")
	testutil.ReadNote(t, dir, failing)
}

func TestFailedRenameDoesNotStopTheWalk(t *testing.T) {
	dir, fsys := failureVault(t)
	failing := "b/Second " + longStem + ".md"
	m := truncmap.New()

	stats, err := New(testutil.FailingStore{Provider: fsys, FailMove: failing}, m).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Failed != 1 || stats.Skipped != 0 || stats.NewUIDAssigned != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if _, ok := m.Get("Second " + longStem); ok {
		t.Error("note whose rename failed was registered")
	}
	assertResolved(t, dir, m, "a", "First")
	assertResolved(t, dir, m, "c", "Third")
	testutil.ReadNote(t, dir, failing)
}
