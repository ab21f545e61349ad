// Package uid classifies note filenames and hands out unused identifiers.
package uid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	uidNameRe  = regexp.MustCompile(`^(uid_\d{3,})\.md$`)
	tempNameRe = regexp.MustCompile(`^uid_fix_temp\((\d+)\)\.md$`)
	uidRe      = regexp.MustCompile(`^uid_\d{3,}$`)
)

// Name is the closed set of filename shapes a note can have.
type Name interface {
	isName()
}

// UIDNamed is a note already named after its identifier, e.g. uid_007.md.
type UIDNamed struct{ ID string }

// Conventional is any other note name; Stem excludes the extension.
type Conventional struct{ Stem string }

// Temp is a quarantined note awaiting second-pass resolution, uid_fix_temp(N).md.
type Temp struct{ N int }

func (UIDNamed) isName()     {}
func (Conventional) isName() {}
func (Temp) isName()         {}

// Classify maps a base filename onto exactly one Name.
func Classify(filename string) Name {
	if m := uidNameRe.FindStringSubmatch(filename); m != nil {
		return UIDNamed{ID: m[1]}
	}
	if m := tempNameRe.FindStringSubmatch(filename); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return Temp{N: n}
		}
	}
	stem := filename
	if i := strings.LastIndex(stem, "."); i > 0 {
		stem = stem[:i]
	}
	return Conventional{Stem: stem}
}

// IsUID reports whether s is a bare identifier such as uid_042.
func IsUID(s string) bool {
	return uidRe.MatchString(s)
}

// Format renders index n as a zero-padded identifier.
func Format(n int) string {
	return fmt.Sprintf("uid_%03d", n)
}

// FileName returns the note filename for id.
func FileName(id string) string {
	return id + ".md"
}

// TempFileName returns the quarantine filename with sequence n.
func TempFileName(n int) string {
	return fmt.Sprintf("uid_fix_temp(%d).md", n)
}
