// Package render turns notes into HTML pages using goldmark.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/vault"
)

// Output file naming schemes.
const (
	NamingID   = "id"
	NamingSlug = "slug"
)

// Writer receives rendered pages. storage.FS satisfies it.
type Writer interface {
	Write(path string, content []byte) error
}

// Renderer converts note content to HTML. Wikilinks that resolve are turned
// into links to the target's page; a backlinks list closes every page that
// has incoming links.
type Renderer struct {
	md     goldmark.Markdown
	naming string
}

// New creates a renderer using the given naming scheme. Unknown schemes fall
// back to NamingID.
func New(naming string) *Renderer {
	if naming != NamingSlug {
		naming = NamingID
	}
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		naming: naming,
	}
}

// FileNames assigns an output file name to every note of v. Slug names that
// would collide get the note id appended, in path order, so the mapping is
// deterministic.
func (r *Renderer) FileNames(v *vault.Vault) map[vault.NoteID]string {
	names := make(map[vault.NoteID]string, v.Len())
	taken := make(map[string]struct{}, v.Len())
	for _, id := range v.IDs() {
		name := id.String()
		if r.naming == NamingSlug {
			n, _ := v.Get(id)
			name = slug.Make(strings.TrimSuffix(n.Path, ".md"))
			if _, dup := taken[name]; dup || name == "" {
				name = strings.TrimPrefix(name+"-"+id.String(), "-")
			}
		}
		taken[name] = struct{}{}
		names[id] = name + ".html"
	}
	return names
}

// Render produces the HTML page for the note with the given id. Frontmatter
// is not part of the page, and wikilinks inside fenced code stay literal.
func (r *Renderer) Render(v *vault.Vault, id vault.NoteID, names map[vault.NoteID]string) ([]byte, error) {
	n, ok := v.Get(id)
	if !ok {
		return nil, fmt.Errorf("render: unknown note %s", id)
	}

	body := parser.Parse([]byte(n.Content)).Body
	src := parser.ReplaceLinks(body, func(target, display string) string {
		to, ok := v.Resolve(target)
		if !ok {
			return display
		}
		return "[" + display + "](" + names[to] + ")"
	})

	var buf bytes.Buffer
	buf.WriteString("<article>\n")
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return nil, fmt.Errorf("render: convert %s: %w", n.Path, err)
	}
	buf.WriteString("</article>\n")

	backlinks := slices.Collect(v.Backlinks(id))
	if len(backlinks) > 0 {
		slices.SortFunc(backlinks, func(a, b vault.NoteID) int {
			na, _ := v.Get(a)
			nb, _ := v.Get(b)
			return strings.Compare(na.Path, nb.Path)
		})
		buf.WriteString("<nav class=\"backlinks\">\n<h2>Backlinks</h2>\n<ul>\n")
		for _, from := range backlinks {
			sn, _ := v.Get(from)
			label := sn.Title
			if label == "" {
				label = sn.Path
			}
			fmt.Fprintf(&buf, "<li><a href=\"%s\">%s</a></li>\n", html.EscapeString(names[from]), html.EscapeString(label))
		}
		buf.WriteString("</ul>\n</nav>\n")
	}
	return buf.Bytes(), nil
}

// WriteAll renders every note of v and hands each page to w. It returns the
// number of pages written.
func (r *Renderer) WriteAll(ctx context.Context, v *vault.Vault, w Writer) (int, error) {
	names := r.FileNames(v)
	written := 0
	for _, id := range v.IDs() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		page, err := r.Render(v, id, names)
		if err != nil {
			return written, err
		}
		if err := w.Write(names[id], page); err != nil {
			return written, fmt.Errorf("render: write %s: %w", names[id], err)
		}
		written++
	}
	return written, nil
}
