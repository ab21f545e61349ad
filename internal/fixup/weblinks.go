package fixup

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
)

var webLinkRe = regexp.MustCompile(`(!?)\[([^\]]+?)\]\(([a-zA-Z0-9.-]+\.[a-z]{2,}[^)\s]*)\)`)

// fileExts are extensions that mark a link target as a local file rather
// than a host name.
var fileExts = map[string]bool{
	".md": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".pdf": true, ".canvas": true,
}

// FixWebText prefixes scheme-less web links with https://. Embeds and links
// to local files are left alone.
func FixWebText(content string) (string, int) {
	return mapLines(content, func(line string) (string, int) {
		n := 0
		line = webLinkRe.ReplaceAllStringFunc(line, func(m string) string {
			sub := webLinkRe.FindStringSubmatch(m)
			target := sub[3]
			if sub[1] != "" || fileExts[strings.ToLower(path.Ext(strings.SplitN(target, "#", 2)[0]))] {
				return m
			}
			n++
			return "[" + sub[2] + "](https://" + target + ")"
		})
		return line, n
	})
}

// FixWebLinks runs FixWebText over the whole vault.
func FixWebLinks(ctx context.Context, store storage.Provider, rep *report.Report) (Result, error) {
	return rewriteAll(ctx, store, rep, "fix-web-links", func(_ string, data []byte) ([]byte, int) {
		out, n := FixWebText(string(data))
		return []byte(out), n
	})
}
