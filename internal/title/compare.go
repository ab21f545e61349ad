package title

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultThresholdBytes approximates the usable filename byte budget of the
// exporting filesystem, with a safety margin below the observed ~97 bytes.
const DefaultThresholdBytes = 70

func significant(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '(', ')', '[', ']':
		return true
	}
	return false
}

// matchPrefix walks name and sentence together. Significant characters must
// match in order; any other character is noise and is skipped on its own
// side. It returns the rune offset in sentence where name was exhausted.
func matchPrefix(name, sentence []rune) (int, bool, string) {
	i, j := 0, 0
	for i < len(name) && j < len(sentence) {
		switch {
		case name[i] == sentence[j]:
			i++
			j++
		case !significant(name[i]):
			i++
		case !significant(sentence[j]):
			j++
		default:
			return j, false, fmt.Sprintf("character mismatch %q != %q at %d", name[i], sentence[j], i)
		}
	}
	for i < len(name) && !significant(name[i]) {
		i++
	}
	if i < len(name) {
		return j, false, fmt.Sprintf("filename matched only %d/%d characters", i, len(name))
	}
	return j, true, ""
}

func numericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Compare reports whether filename is a noise-tolerant prefix of the cleaned
// sentence with genuine content left over. The reason is meant for reports.
func Compare(filename, cleaned string) (bool, string) {
	name := []rune(RemoveTrailingNumber(Normalize(filename)))
	sentence := []rune(Normalize(cleaned))

	j, ok, reason := matchPrefix(name, sentence)
	if !ok {
		return false, reason
	}
	rest := strings.TrimSpace(string(sentence[j:]))
	if rest == "" || numericOnly(rest) {
		return false, "remainder is empty or numeric"
	}
	return true, "first line continues past the filename"
}

// remainder returns what is left of sentence after the filename prefix.
func remainder(name, sentence string) string {
	nr, sr := []rune(Normalize(name)), []rune(Normalize(sentence))
	if j, ok, _ := matchPrefix(nr, sr); ok {
		return strings.TrimSpace(string(sr[j:]))
	}
	if len(sr) >= len(nr) {
		return strings.TrimSpace(string(sr[len(nr):]))
	}
	return ""
}

// IsTruncated decides whether the filesystem cut sentence down to
// filenameClean. A lone terminator left over is always a cut; otherwise the
// filename must be at least threshold bytes long with something remaining.
func IsTruncated(filenameClean, sentence string, threshold int) (bool, string) {
	tail := remainder(filenameClean, sentence)
	size := len(filenameClean)
	switch {
	case tail == "." || tail == "?" || tail == "!":
		return true, fmt.Sprintf("remainder is terminator %q", tail)
	case size >= threshold && tail != "":
		return true, fmt.Sprintf("filename is %d bytes with remainder", size)
	}
	return false, fmt.Sprintf("filename is %d bytes, remainder not significant", size)
}

// SynthesizeKey derives a standard truncation key for a note that has no
// filename-derived one: drop a trailing terminator, else cut to the byte
// threshold on a rune boundary, else drop the last word (or rune).
func SynthesizeKey(cleaned string, threshold int) string {
	s := strings.TrimSpace(cleaned)
	if s == "" {
		return s
	}
	if last, size := utf8.DecodeLastRuneInString(s); last == '.' || last == '?' || last == '!' {
		return strings.TrimRightFunc(s[:len(s)-size], unicode.IsSpace)
	}

	cut, used := len(s), 0
	for idx, r := range s {
		n := utf8.RuneLen(r)
		if used+n > threshold {
			cut = idx
			break
		}
		used += n
	}
	base := strings.TrimSpace(trailingNumRe.ReplaceAllString(strings.TrimRightFunc(s[:cut], unicode.IsSpace), ""))
	if base == "" || numericOnly(base) {
		base = s
	}
	if base == s {
		if t := dropLastWord(s); t != "" {
			return t
		}
		_, size := utf8.DecodeLastRuneInString(s)
		return s[:len(s)-size]
	}
	return base
}

func dropLastWord(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	return strings.TrimRightFunc(s[:idx], unicode.IsSpace)
}

// Serialize returns sentence, or the first "sentence (n)" for n >= 2 that
// taken does not report as already in use.
func Serialize(sentence string, taken func(string) bool) string {
	return withSuffix(sentence, taken)
}

// UniquifyKey returns base, or the first "base (n)" for n >= 2 not yet taken.
func UniquifyKey(base string, taken func(string) bool) string {
	return withSuffix(base, taken)
}

func withSuffix(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s (%d)", base, n)
		if !taken(cand) {
			return cand
		}
	}
}
