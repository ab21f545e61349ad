package fixup

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
)

var (
	mdNoteLinkRe = regexp.MustCompile(`(!?)\[([^\]]+?)\.md\]\(([^)]+?\.md)\)`)
	wikiTargetRe = regexp.MustCompile(`\[\[([^\[\]|\n]+?)(\|[^\[\]\n]*)?\]\]`)
)

// LinkConverter turns exported [label.md](target.md) links into wiki-links
// and re-points wiki-links at notes renamed by FixFilenames.
type LinkConverter struct {
	byPath map[string]string // cleaned old path -> new path
	byStem map[string]string // old stem -> new stem
}

// NewLinkConverter indexes a rename map for lookups.
func NewLinkConverter(renamed RenameMap) *LinkConverter {
	c := &LinkConverter{byPath: map[string]string{}, byStem: map[string]string{}}
	for oldPath, newPath := range renamed {
		c.byPath[path.Clean(oldPath)] = newPath
		oldStem, newStem := stemOf(oldPath), stemOf(newPath)
		if oldStem != newStem {
			c.byStem[oldStem] = newStem
		}
	}
	return c
}

func stemOf(p string) string {
	base := strings.ReplaceAll(path.Base(p), "%20", " ")
	return strings.TrimSuffix(base, path.Ext(base))
}

// ConvertText rewrites the links of one note located in noteDir.
func (c *LinkConverter) ConvertText(content, noteDir string) (string, int) {
	return mapLines(content, func(line string) (string, int) {
		n := 0
		line = mdNoteLinkRe.ReplaceAllStringFunc(line, func(m string) string {
			sub := mdNoteLinkRe.FindStringSubmatch(m)
			if sub[1] != "" {
				return m
			}
			n++
			return "[[" + c.label(strings.TrimSpace(sub[2]), strings.TrimSpace(sub[3]), noteDir) + "]]"
		})
		if len(c.byStem) == 0 {
			return line, n
		}
		line = wikiTargetRe.ReplaceAllStringFunc(line, func(m string) string {
			sub := wikiTargetRe.FindStringSubmatch(m)
			renamed, ok := c.byStem[sub[1]]
			if !ok {
				if renamed, ok = c.byStem[strings.TrimSpace(sub[1])]; !ok {
					return m
				}
			}
			n++
			return "[[" + renamed + sub[2] + "]]"
		})
		return line, n
	})
}

// label prefers the basename a renamed target ended up with.
func (c *LinkConverter) label(label, target, noteDir string) string {
	if t, err := url.PathUnescape(target); err == nil {
		target = t
	}
	for _, cand := range []string{path.Join(noteDir, target), path.Clean(target)} {
		if renamed, ok := c.byPath[cand]; ok {
			return stemOf(renamed)
		}
	}
	return label
}

// ConvertMarkdownLinks runs ConvertText over the whole vault.
func ConvertMarkdownLinks(ctx context.Context, store storage.Provider, rep *report.Report, renamed RenameMap) (Result, error) {
	c := NewLinkConverter(renamed)
	return rewriteAll(ctx, store, rep, "convert-links", func(p string, data []byte) ([]byte, int) {
		out, n := c.ConvertText(string(data), path.Dir(p))
		return []byte(out), n
	})
}
