// Package aliaslink points wiki-links at note identifiers while keeping the
// full sentence visible as an alias, e.g. [[uid_001|@Full Title]].
package aliaslink

import (
	"regexp"
	"strings"

	"github.com/starford/vaultfix/internal/parser"
	"github.com/starford/vaultfix/internal/title"
	"github.com/starford/vaultfix/internal/truncmap"
	"github.com/starford/vaultfix/internal/uid"
)

var wikiLinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]|\n]+?)(?:\|([^\[\]\n]*))?\]\]`)

// Kind tells a plain-link rewrite from a stale-identifier repair.
type Kind string

const (
	KindRewrite Kind = "rewrite"
	KindHeal    Kind = "heal"
)

// Change is one link replaced by RewriteText.
type Change struct {
	Line int // 1-based
	Kind Kind
	From string
	To   string
}

// RewriteText rewrites the wiki-links of one note. Plain [[target]] links
// whose target is a registered key or sentence become [[uid|<marker>sentence]];
// existing [[uid|<marker>sentence]] links are re-pointed when the sentence
// now maps to a different identifier. Embeds, other aliased links and links
// inside code are left alone. Applying it to its own output changes nothing.
func RewriteText(content string, m *truncmap.Map, marker string) (string, []Change) {
	lines := strings.Split(content, "\n")
	var changes []Change
	var fence parser.Fence
	for i, line := range lines {
		if fence.Step(line) || !strings.Contains(line, "[[") {
			continue
		}
		out, lc := rewriteLine(line, m, marker)
		for _, c := range lc {
			c.Line = i + 1
			changes = append(changes, c)
		}
		lines[i] = out
	}
	return strings.Join(lines, "\n"), changes
}

func rewriteLine(line string, m *truncmap.Map, marker string) (string, []Change) {
	spans := codeSpans(line)
	var (
		b       strings.Builder
		changes []Change
		last    int
	)
	for _, loc := range wikiLinkRe.FindAllStringSubmatchIndex(line, -1) {
		start, end := loc[0], loc[1]
		if loc[3] > loc[2] || inSpan(spans, start) {
			continue
		}
		raw := line[start:end]
		target := line[loc[4]:loc[5]]

		var (
			repl string
			kind Kind
		)
		if loc[6] < 0 {
			repl, kind = plainLink(target, m, marker)
		} else {
			repl, kind = aliasedLink(target, line[loc[6]:loc[7]], m, marker)
		}
		if repl == "" || repl == raw {
			continue
		}
		b.WriteString(line[last:start])
		b.WriteString(repl)
		last = end
		changes = append(changes, Change{Kind: kind, From: raw, To: repl})
	}
	if len(changes) == 0 {
		return line, nil
	}
	b.WriteString(line[last:])
	return b.String(), changes
}

func plainLink(target string, m *truncmap.Map, marker string) (string, Kind) {
	t := title.Normalize(strings.TrimSpace(target))
	if uid.IsUID(t) {
		if full, ok := m.ExpectedFull(t); ok {
			return link(t, marker+full), KindRewrite
		}
		return "", ""
	}
	e, ok := m.Lookup(t)
	if !ok {
		return "", ""
	}
	return link(e.UID, marker+e.FullSentence), KindRewrite
}

func aliasedLink(target, alias string, m *truncmap.Map, marker string) (string, Kind) {
	t := strings.TrimSpace(target)
	if !uid.IsUID(t) || !strings.HasPrefix(alias, marker) {
		return "", ""
	}
	id, ok := m.UIDFor(title.Normalize(strings.TrimPrefix(alias, marker)))
	if !ok || id == t {
		return "", ""
	}
	return link(id, alias), KindHeal
}

func link(id, alias string) string {
	return "[[" + id + "|" + alias + "]]"
}

// codeSpans returns the byte ranges of inline code on a line.
func codeSpans(line string) [][2]int {
	var spans [][2]int
	open := -1
	for i := 0; i < len(line); i++ {
		if line[i] != '`' {
			continue
		}
		if open < 0 {
			open = i
		} else {
			spans = append(spans, [2]int{open, i})
			open = -1
		}
	}
	return spans
}

func inSpan(spans [][2]int, pos int) bool {
	for _, s := range spans {
		if pos > s[0] && pos < s[1] {
			return true
		}
	}
	return false
}
