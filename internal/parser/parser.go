// Package parser locates front matter and the first content line in Markdown notes.
package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Lines splits content on "\n". A trailing "\r" stays on each line so that
// joining the result with "\n" reproduces the input byte for byte.
func Lines(data []byte) []string {
	return strings.Split(string(data), "\n")
}

func isDelim(line string) bool {
	return strings.TrimSpace(line) == delim
}

// FrontmatterEnd returns the index of the closing delimiter of a leading
// front matter block, or -1 when lines do not start with a well-formed one.
// The opening delimiter must be the very first line.
func FrontmatterEnd(lines []string) int {
	if len(lines) == 0 || !isDelim(lines[0]) {
		return -1
	}
	for i := 1; i < len(lines); i++ {
		if isDelim(lines[i]) {
			return i
		}
	}
	return -1
}

// SkipFrontmatter returns the lines after a leading front matter block, or
// all lines unchanged if there is none.
func SkipFrontmatter(lines []string) []string {
	end := FrontmatterEnd(lines)
	if end < 0 {
		return lines
	}
	return lines[end+1:]
}

// FenceMarker returns the marker ("```" or "~~~") when line opens or
// closes a fenced code block, and "" otherwise.
func FenceMarker(line string) string {
	t := strings.TrimLeft(line, " \t")
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(t, m) {
			return m
		}
	}
	return ""
}

// Fence tracks fenced code blocks during a line walk. A block only closes
// on the marker that opened it.
type Fence struct {
	open string
}

// Step consumes the next line and reports whether it is part of a fenced
// block, delimiters included.
func (f *Fence) Step(line string) bool {
	m := FenceMarker(line)
	if f.open == "" {
		if m == "" {
			return false
		}
		f.open = m
		return true
	}
	if m == f.open {
		f.open = ""
	}
	return true
}

// FirstContentIndex returns the index of the first non-blank line after the
// front matter, or -1 if the note has no content.
func FirstContentIndex(lines []string) int {
	start := FrontmatterEnd(lines) + 1
	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}

// FirstContentLine returns the first non-blank line of a note body without
// its line terminator.
func FirstContentLine(data []byte) string {
	lines := Lines(data)
	i := FirstContentIndex(lines)
	if i < 0 {
		return ""
	}
	return strings.TrimRight(lines[i], "\r")
}

// ReplaceFirstContentLine swaps the first content line for line, keeping
// front matter and every other byte intact. A note without content gets
// line appended.
func ReplaceFirstContentLine(data []byte, line string) []byte {
	lines := Lines(data)
	i := FirstContentIndex(lines)
	if i < 0 {
		out := string(data)
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		return []byte(out + line + "\n")
	}
	cr := ""
	if strings.HasSuffix(lines[i], "\r") {
		cr = "\r"
	}
	lines[i] = line + cr
	return []byte(strings.Join(lines, "\n"))
}

// Frontmatter splits a note into its raw YAML block (without delimiters) and
// the remaining body. ok is false when the note has no front matter.
func Frontmatter(data []byte) (block []string, body []string, ok bool) {
	lines := Lines(data)
	end := FrontmatterEnd(lines)
	if end < 0 {
		return nil, lines, false
	}
	return lines[1:end], lines[end+1:], true
}

// ValidateYAML reports whether block decodes as a YAML mapping.
func ValidateYAML(block []string) error {
	var fm map[string]interface{}
	if err := yaml.Unmarshal([]byte(strings.Join(block, "\n")), &fm); err != nil {
		return fmt.Errorf("parser: front matter: %w", err)
	}
	return nil
}
