// Package parser locates wikilinks and derives titles from raw Markdown notes.
// It does not render or validate Markdown.
package parser

import (
	"bytes"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// wikilinkRe matches [[target]], [[target|alias]] and [[target#heading]].
// Brackets are not allowed inside the target.
var wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+?)\]\]`)

// Result holds the output of parsing a note.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
	Title       string
}

// Parse splits frontmatter from the body, collects wikilink targets from the
// whole document and derives a title.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       Links(string(data)),
		Title:       deriveTitle(fm, body),
	}
}

// Title returns the title of a note stored at notePath: the frontmatter title,
// else the first H1 heading, else the file name without extension.
func Title(notePath string, data []byte) string {
	fm, body := splitFrontmatter(data)
	if t := deriveTitle(fm, body); t != "" {
		return t
	}
	base := path.Base(notePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Links returns deduplicated wikilink targets in order of first appearance.
// Aliases and heading anchors are stripped: [[Target#Part|Shown]] yields Target.
func Links(content string) []string {
	matches := wikilinkRe.FindAllStringSubmatchIndex(content, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		// [[[x]]] is array syntax, not a link.
		if m[0] > 0 && content[m[0]-1] == '[' {
			continue
		}
		target := normalizeTarget(content[m[2]:m[3]])
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// ReplaceLinks rewrites every wikilink in content with the result of fn, which
// receives the normalized target and the text to display (the alias when one
// is given, else the raw target). Links that Links would skip are left as is,
// and so is everything inside fenced code blocks (``` or ~~~).
func ReplaceLinks(content string, fn func(target, display string) string) string {
	var b strings.Builder
	var fence string
	for _, line := range strings.SplitAfter(content, "\n") {
		marker := fenceMarker(line)
		switch {
		case fence != "":
			if marker != "" && strings.HasPrefix(marker, fence) {
				fence = ""
			}
			b.WriteString(line)
		case marker != "":
			fence = marker
			b.WriteString(line)
		default:
			b.WriteString(replaceLine(line, fn))
		}
	}
	return b.String()
}

// fenceMarker returns the run of backticks or tildes opening line, or "" when
// line is not a code fence.
func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || trimmed == "" {
		return ""
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return ""
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return ""
	}
	return trimmed[:n]
}

func replaceLine(line string, fn func(target, display string) string) string {
	matches := wikilinkRe.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return line
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m[0] > 0 && line[m[0]-1] == '[' {
			continue
		}
		raw := line[m[2]:m[3]]
		target := normalizeTarget(raw)
		if target == "" {
			continue
		}
		display := raw
		if i := strings.Index(raw, "|"); i >= 0 {
			display = raw[i+1:]
		}
		b.WriteString(line[last:m[0]])
		b.WriteString(fn(target, strings.TrimSpace(display)))
		last = m[1]
	}
	b.WriteString(line[last:])
	return b.String()
}

func normalizeTarget(raw string) string {
	if i := strings.Index(raw, "|"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.Index(raw, "#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// splitFrontmatter separates YAML frontmatter between leading --- delimiters
// from the body. Missing or invalid frontmatter leaves the whole input as body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise the empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
