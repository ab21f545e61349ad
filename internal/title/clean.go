// Package title derives comparable sentences from note first lines and
// decides whether a filename is a truncated prefix of one.
package title

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// AliasMarker prefixes the visible alias of a UID link, as in [[uid_001|@Title]].
const AliasMarker = "@"

var (
	bulletRe      = regexp.MustCompile(`^[-+*]\s+`)
	orderedRe     = regexp.MustCompile(`^\d+\.\s+`)
	headingRe     = regexp.MustCompile(`^#+\s*`)
	quoteRe       = regexp.MustCompile(`^>+\s*`)
	boldRe        = regexp.MustCompile(`\*\*(.*?)\*\*`)
	codeRe        = regexp.MustCompile("`([^`]+)`")
	wikiRe        = regexp.MustCompile(`\[\[([^|\]]+)(?:\|([^\]]+))?\]\]`)
	trailingNumRe = regexp.MustCompile(`\s*\d+$`)
)

// Normalize returns s in Unicode NFC so that names read from disk compare
// equal to the same text typed into a note.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// Clean strips Markdown decoration from a first line and returns the
// canonical sentence used as a note's identity. Clean(Clean(s)) == Clean(s)
// holds for every input, and a " (n)" disambiguation suffix is never removed.
func Clean(line string) string {
	s := Normalize(line)
	for {
		next := cleanOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

// cleanOnce applies each rewrite a single time. Every change shortens the
// string, so iterating it reaches a fixed point.
func cleanOnce(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	s = bulletRe.ReplaceAllString(s, "")
	s = orderedRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "")
	s = quoteRe.ReplaceAllString(s, "")
	s = boldRe.ReplaceAllString(s, "$1")
	s = stripItalic(s)
	s = codeRe.ReplaceAllString(s, "$1")
	s = wikiRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := wikiRe.FindStringSubmatch(m)
		if sub[2] != "" {
			return strings.TrimLeft(sub[2], AliasMarker)
		}
		return sub[1]
	})
	s = trailingNumRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripItalic unwraps *x* spans that are not part of a ** pair.
func stripItalic(s string) string {
	if !strings.Contains(s, "*") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] == '*' && (i == 0 || s[i-1] != '*') && i+1 < len(s) && s[i+1] != '*' {
			if k := strings.IndexByte(s[i+1:], '*'); k > 0 {
				end := i + 1 + k
				if end+1 >= len(s) || s[end+1] != '*' {
					b.WriteString(s[i+1 : end])
					i = end + 1
					continue
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// RemoveTrailingNumber drops one trailing run of digits (and the whitespace
// before it) from a filename stem.
func RemoveTrailingNumber(s string) string {
	return trailingNumRe.ReplaceAllString(strings.TrimSpace(s), "")
}
