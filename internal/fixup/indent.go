package fixup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/vaultfix/internal/parser"
	"github.com/starford/vaultfix/internal/report"
	"github.com/starford/vaultfix/internal/storage"
)

// IndentOptions control how leading whitespace is measured and rebuilt.
type IndentOptions struct {
	TabSize         int // columns per tab stop
	IndentUnit      int // visual columns per nesting level in the source
	SpacesPerIndent int // spaces per nesting level in the output
}

// DefaultIndentOptions matches the export this tool was built for.
func DefaultIndentOptions() IndentOptions {
	return IndentOptions{TabSize: 3, IndentUnit: 3, SpacesPerIndent: 4}
}

// VisualIndent returns the column the first non-blank character of line
// lands on, expanding tabs to tabSize stops.
func VisualIndent(line string, tabSize int) int {
	col := 0
	for _, r := range line {
		switch r {
		case ' ':
			col++
		case '\t':
			col += tabSize - col%tabSize
		default:
			return col
		}
	}
	return col
}

// ReindentText rebuilds the leading whitespace of every body line as
// SpacesPerIndent spaces per level. Front matter and fenced code keep their
// indentation; whitespace-only lines become empty.
func ReindentText(content string, opts IndentOptions) (string, int) {
	lines := strings.Split(content, "\n")
	start := parser.FrontmatterEnd(lines) + 1
	changed := 0
	var fence parser.Fence
	for i := start; i < len(lines); i++ {
		line := lines[i]
		if fence.Step(line) {
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		var rebuilt string
		if strings.TrimSpace(trimmed) != "" {
			level := VisualIndent(line, opts.TabSize) / opts.IndentUnit
			rebuilt = strings.Repeat(" ", level*opts.SpacesPerIndent) + trimmed
		} else if strings.HasSuffix(line, "\r") {
			rebuilt = "\r"
		}
		if rebuilt != line {
			lines[i] = rebuilt
			changed++
		}
	}
	return strings.Join(lines, "\n"), changed
}

// Reindent runs ReindentText over the whole vault.
func Reindent(ctx context.Context, store storage.Provider, rep *report.Report, opts IndentOptions) (Result, error) {
	return rewriteAll(ctx, store, rep, "reindent", func(_ string, data []byte) ([]byte, int) {
		out, n := ReindentText(string(data), opts)
		return []byte(out), n
	})
}

// IndentHistogram counts non-zero changes of visual indent between
// consecutive non-blank lines.
type IndentHistogram map[int]int

// AnalyzeText adds the indent deltas of one note to h.
func (h IndentHistogram) AnalyzeText(content string, tabSize int) {
	prev, seen := 0, false
	for _, line := range parser.SkipFrontmatter(parser.Lines([]byte(content))) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		col := VisualIndent(line, tabSize)
		if seen && col != prev {
			h[col-prev]++
		}
		prev, seen = col, true
	}
}

// Lines renders the histogram in ascending delta order.
func (h IndentHistogram) Lines() []string {
	deltas := make([]int, 0, len(h))
	for d := range h {
		deltas = append(deltas, d)
	}
	sort.Ints(deltas)
	out := make([]string, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, fmt.Sprintf("%+3d -> %d", d, h[d]))
	}
	return out
}

// AnalyzeIndent measures indent deltas across the vault, which reveals the
// indent unit an export used.
func AnalyzeIndent(ctx context.Context, store storage.Provider, tabSize int) (IndentHistogram, error) {
	h := IndentHistogram{}
	files, err := store.List("")
	if err != nil {
		return nil, fmt.Errorf("fixup: list vault: %w", err)
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := store.Read(f.Path)
		if err != nil {
			continue
		}
		h.AnalyzeText(string(data), tabSize)
	}
	return h, nil
}
