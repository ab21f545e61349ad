//go:build windows

package storage

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	extendedPrefix = `\\?\`
	uncPrefix      = `\\?\UNC\`
)

// SafePath returns p as an extended-length path so that Win32 calls accept
// paths longer than MAX_PATH. Existing prefixes are stripped first so the
// result always carries exactly one.
func SafePath(p string) string {
	s := strings.TrimSpace(strings.ReplaceAll(p, "/", `\`))
	for strings.HasPrefix(strings.ToUpper(s), extendedPrefix) {
		if strings.HasPrefix(strings.ToUpper(s), uncPrefix) {
			s = `\\` + s[len(uncPrefix):]
		} else {
			s = s[len(extendedPrefix):]
		}
	}
	if s == "" || s == `\` {
		if wd, err := os.Getwd(); err == nil {
			s = wd
		}
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		abs = s
	}
	if strings.HasPrefix(abs, `\\`) {
		return uncPrefix + strings.TrimLeft(abs, `\`)
	}
	return extendedPrefix + abs
}
