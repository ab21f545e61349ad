package truncmap

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vaultfix/internal/apperr"
)

func TestRegisterKeepsIndicesInSync(t *testing.T) {
	m := New()
	if err := m.Register("Short key", Entry{UID: "uid_001", FullSentence: "Short key and the rest."}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if uid, ok := m.UIDFor("Short key and the rest."); !ok || uid != "uid_001" {
		t.Errorf("UIDFor = %q, %v", uid, ok)
	}
	if k, ok := m.KeyForUID("uid_001"); !ok || k != "Short key" {
		t.Errorf("KeyForUID = %q, %v", k, ok)
	}
	if s, ok := m.ExpectedFull("uid_001"); !ok || s != "Short key and the rest." {
		t.Errorf("ExpectedFull = %q, %v", s, ok)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	m := New()
	_ = m.Register("k", Entry{UID: "uid_001", FullSentence: "S"})

	tests := []struct {
		name string
		key  string
		e    Entry
		want error
	}{
		{"key", "k", Entry{UID: "uid_002", FullSentence: "T"}, ErrKeyExists},
		{"uid", "k2", Entry{UID: "uid_001", FullSentence: "T"}, ErrUIDExists},
		{"sentence", "k2", Entry{UID: "uid_002", FullSentence: "S"}, ErrSentenceExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Register(tt.key, tt.e)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, apperr.ErrAlreadyExists) {
				t.Errorf("err should wrap ErrAlreadyExists: %v", err)
			}
		})
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d after rejected registrations", m.Len())
	}
}

func TestRegisterRandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	m := New()
	for i := 0; i < 2000; i++ {
		key := fmt.Sprintf("key-%d", rng.Intn(60))
		e := Entry{
			UID:          fmt.Sprintf("uid_%03d", rng.Intn(60)),
			FullSentence: fmt.Sprintf("sentence %d", rng.Intn(60)),
		}
		collides := m.HasKey(key) || m.HasUID(e.UID) || m.HasFull(e.FullSentence)
		err := m.Register(key, e)
		if collides && !errors.Is(err, apperr.ErrAlreadyExists) {
			t.Fatalf("step %d: forced collision not rejected: %v", i, err)
		}
		if !collides && err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
	}

	uids := make(map[string]string)
	fulls := make(map[string]string)
	for k, e := range m.Entries() {
		if other, ok := uids[e.UID]; ok {
			t.Errorf("uid %s shared by %s and %s", e.UID, other, k)
		}
		if other, ok := fulls[e.FullSentence]; ok {
			t.Errorf("sentence %q shared by %s and %s", e.FullSentence, other, k)
		}
		uids[e.UID] = k
		fulls[e.FullSentence] = k
		if got, _ := m.KeyForUID(e.UID); got != k {
			t.Errorf("KeyForUID(%s) = %s, want %s", e.UID, got, k)
		}
	}
	if err := m.Rebuild(); err != nil {
		t.Errorf("Rebuild of a consistent map reported: %v", err)
	}
}

func TestUpdateFullForUID(t *testing.T) {
	m := New()
	_ = m.Register("k", Entry{UID: "uid_001", FullSentence: "S"})
	_ = m.Register("j", Entry{UID: "uid_002", FullSentence: "T"})

	if err := m.UpdateFullForUID("uid_001", "S", "S (2)"); err != nil {
		t.Fatalf("UpdateFullForUID: %v", err)
	}
	if m.HasFull("S") {
		t.Error("old sentence still indexed")
	}
	if e, _ := m.Get("k"); e.FullSentence != "S (2)" {
		t.Errorf("entry = %+v", e)
	}
	if k, _ := m.KeyForUID("uid_001"); k != "k" {
		t.Errorf("key changed to %q", k)
	}
	if err := m.UpdateFullForUID("uid_001", "S (2)", "T"); !errors.Is(err, ErrSentenceExists) {
		t.Errorf("taking another uid's sentence: err = %v", err)
	}
	if err := m.UpdateFullForUID("uid_404", "x", "y"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown uid: err = %v", err)
	}
}

func TestLookupByKeyThenSentence(t *testing.T) {
	m := New()
	_ = m.Register("Full Ti", Entry{UID: "uid_001", FullSentence: "Full Title"})
	for _, target := range []string{"Full Ti", "Full Title"} {
		e, ok := m.Lookup(target)
		if !ok || e.UID != "uid_001" || e.FullSentence != "Full Title" {
			t.Errorf("Lookup(%q) = %+v, %v", target, e, ok)
		}
	}
	if _, ok := m.Lookup("missing"); ok {
		t.Error("Lookup(missing) should fail")
	}
}

func TestLoadMissingFile(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestLoadCorruptFileIsNotRepaired(t *testing.T) {
	p := filepath.Join(t.TempDir(), "map.json")
	_ = os.WriteFile(p, []byte("{not json"), 0o644)

	m, err := Load(p)
	if !errors.Is(err, apperr.ErrCorruptMap) {
		t.Fatalf("err = %v, want ErrCorruptMap", err)
	}
	if m == nil || m.Len() != 0 {
		t.Fatalf("expected empty usable map, got %v", m)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "{not json" {
		t.Errorf("corrupt file was rewritten: %q", data)
	}
}

func TestLoadReportsInconsistentEntries(t *testing.T) {
	p := filepath.Join(t.TempDir(), "map.json")
	_ = os.WriteFile(p, []byte(`{
  "a": {"uid": "uid_001", "full_sentence": "Same"},
  "b": {"uid": "uid_002", "full_sentence": "Same"}
}`), 0o644)
	m, err := Load(p)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
}

func TestSaveThenLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "log", "truncation_map.json")
	m := New()
	_ = m.Register("測試 <key>", Entry{UID: "uid_007", FullSentence: "測試 <key> & more."})
	if err := Save(p, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(p)
	if !containsAll(string(data), `"uid": "uid_007"`, `測試 <key> & more.`) {
		t.Errorf("unexpected encoding:\n%s", data)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e, ok := got.Get("測試 <key>"); !ok || e.UID != "uid_007" {
		t.Errorf("Get = %+v, %v", e, ok)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
