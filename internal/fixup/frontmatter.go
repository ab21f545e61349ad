package fixup

import (
	"context"
	"regexp"
	"strings"

	"github.com/starford/vaultfix/internal/parser"
	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
)

var (
	quoteSpaceLinkRe = regexp.MustCompile(`"\s+\[`)
	mdLinkRe         = regexp.MustCompile(`\[([^\]]+?)\]\(([^)]+?)\)`)
	doubledQuoteRe   = regexp.MustCompile(`""([^"]+?)""`)
	literalStartRe   = regexp.MustCompile(`:\s*[|>][-+]?\s*$`)
	quotedLinksRe    = regexp.MustCompile(`^([^:]+):\s*"(.*\[.+?\]\(.+?\).*)"\s*$`)
	bareLinkValueRe  = regexp.MustCompile(`^(\s*(?:[^:"\s][^:]*:\s+|-\s+))(\[[^\]]+\]\([^)]+\).*)$`)
)

// RepairYAML fixes the artifacts exported front matter tends to carry:
// stray spaces between a quote and a link, unencoded link URLs, doubled
// quotes, several links packed into one quoted value, bare link values that
// YAML reads as flow sequences, and trailing backslashes in literal blocks.
func RepairYAML(block []string) []string {
	out := make([]string, 0, len(block))
	literalIndent := -1
	for _, line := range block {
		if literalIndent >= 0 {
			if strings.TrimSpace(line) == "" || indentOf(line) > literalIndent {
				out = append(out, strings.TrimRight(strings.TrimRight(line, "\\"), " \t"))
				continue
			}
			literalIndent = -1
		}
		if literalStartRe.MatchString(line) {
			literalIndent = indentOf(line)
			out = append(out, line)
			continue
		}

		line = quoteSpaceLinkRe.ReplaceAllString(line, `"[`)
		line = mdLinkRe.ReplaceAllStringFunc(line, func(m string) string {
			sub := mdLinkRe.FindStringSubmatch(m)
			return "[" + sub[1] + "](" + encodeURL(sub[2]) + ")"
		})
		line = doubledQuoteRe.ReplaceAllString(line, `"$1"`)

		if sub := quotedLinksRe.FindStringSubmatch(line); sub != nil {
			if links := mdLinkRe.FindAllString(sub[2], -1); len(links) > 1 {
				out = append(out, sub[1]+":")
				pad := strings.Repeat(" ", indentOf(sub[1])+2)
				for _, l := range links {
					out = append(out, pad+"- "+quoteYAML(l))
				}
				continue
			}
		}
		if sub := bareLinkValueRe.FindStringSubmatch(line); sub != nil {
			line = sub[1] + quoteYAML(strings.TrimRight(sub[2], " \t"))
		}
		out = append(out, line)
	}
	return out
}

// RepairFrontmatter applies RepairYAML to every note with front matter and
// reports blocks that still fail to parse.
func RepairFrontmatter(ctx context.Context, store storage.Provider, rep *report.Report) (Result, error) {
	return rewriteAll(ctx, store, rep, "repair-yaml", func(p string, data []byte) ([]byte, int) {
		raw, _, ok := parser.Frontmatter(data)
		if !ok {
			return data, 0
		}
		block := make([]string, 0, len(raw))
		crlf := false
		for _, l := range raw {
			if strings.HasSuffix(l, "\r") {
				crlf = true
			}
			block = append(block, strings.TrimSuffix(l, "\r"))
		}
		fixed := RepairYAML(block)
		if err := parser.ValidateYAML(fixed); err != nil {
			rep.Event("yaml-invalid", p, "", err.Error())
		}

		changed := len(fixed) != len(block)
		for i := 0; !changed && i < len(fixed); i++ {
			changed = fixed[i] != block[i]
		}
		if !changed {
			return data, 0
		}
		if crlf {
			for i := range fixed {
				fixed[i] += "\r"
			}
		}
		lines := parser.Lines(data)
		rebuilt := append([]string{lines[0]}, fixed...)
		rebuilt = append(rebuilt, lines[len(raw)+1:]...)
		return []byte(strings.Join(rebuilt, "\n")), 1
	})
}

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

// quoteYAML wraps s in double quotes unless it already is quoted.
func quoteYAML(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s
	}
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}

// encodeURL percent-encodes the bytes of u that may not appear unescaped in
// a URL. Existing escapes are kept, so encoding twice changes nothing.
func encodeURL(u string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(u); i++ {
		c := u[i]
		if urlSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func urlSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~:/?#[]@!$&'()*+,;=%", c) >= 0
}
