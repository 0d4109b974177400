package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/parser"
)

var (
	// ErrDuplicatePath is wrapped by DuplicatePathError.
	ErrDuplicatePath = errors.New("vault: duplicate path")
	// ErrSource is wrapped when the document source cannot be enumerated.
	ErrSource = errors.New("vault: source unavailable")
	// ErrSealed is returned when registering after resolution has started.
	ErrSealed = errors.New("vault: builder sealed")
)

// DuplicatePathError reports two documents claiming the same path.
type DuplicatePathError struct {
	Path string
	ID   NoteID
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("vault: duplicate path %q (note %s)", e.Path, e.ID)
}

func (e *DuplicatePathError) Unwrap() error { return ErrDuplicatePath }

// Document is one raw input to the builder.
type Document struct {
	Path    string
	Title   string
	Content string
}

// Source enumerates the documents of a vault. Order is not significant for
// links, but it decides which note wins a shared title.
type Source interface {
	Documents() ([]Document, error)
}

// LinkExtractor returns the reference strings found in raw note content.
type LinkExtractor func(content string) []string

type buildState int

const (
	stateRegistering buildState = iota
	stateResolving
	stateDone
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSource sets the source pulled by Build before resolving.
func WithSource(src Source) BuilderOption {
	return func(b *Builder) { b.source = src }
}

// WithLinkExtractor replaces the default wikilink scanner.
func WithLinkExtractor(fn LinkExtractor) BuilderOption {
	return func(b *Builder) {
		if fn != nil {
			b.extract = fn
		}
	}
}

// WithWorkers bounds the number of notes resolved concurrently.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder turns documents into a linked Vault in two passes: every document is
// registered first, then every note's content is scanned and its references
// resolved. A Builder is single use.
type Builder struct {
	source  Source
	extract LinkExtractor
	workers int
	logger  *slog.Logger

	state  buildState
	err    error
	vault  *Vault
	order  []NoteID
	report Report
}

// NewBuilder returns a builder in the registering state.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		extract: parser.Links,
		workers: 1,
		logger:  slog.New(slog.DiscardHandler),
		vault:   newVault(0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add registers one document. It fails with a DuplicatePathError when the path
// is already taken, which also fails the build, and with ErrSealed once Build
// has started resolving.
func (b *Builder) Add(doc Document) error {
	if b.state != stateRegistering {
		return ErrSealed
	}
	if b.err != nil {
		return b.err
	}

	id := NewNoteID(doc.Path)
	if _, taken := b.vault.byPath[doc.Path]; taken {
		b.err = &DuplicatePathError{Path: doc.Path, ID: id}
		return b.err
	}

	n := &Note{
		Title:       doc.Title,
		Path:        doc.Path,
		Content:     doc.Content,
		Adjacencies: make(map[NoteID]Edge),
	}
	if prev, collided := b.vault.register(id, n); collided {
		b.report.DuplicateTitles = append(b.report.DuplicateTitles, TitleCollision{
			Title:    doc.Title,
			Previous: prev,
			Winner:   id,
		})
		b.logger.Warn("build: duplicate title",
			slog.String("title", doc.Title),
			slog.String("path", doc.Path),
			slog.String("shadowed", b.vault.notes[prev].Path))
	}
	b.order = append(b.order, id)
	return nil
}

// Build pulls every document from the source, seals the note set and resolves
// all references. Unresolved references and shared titles do not fail the
// build; they are listed in the returned Report.
func (b *Builder) Build(ctx context.Context) (*Vault, *Report, error) {
	if b.state != stateRegistering {
		return nil, nil, ErrSealed
	}
	start := time.Now()

	if b.source != nil && b.err == nil {
		docs, err := b.source.Documents()
		if err != nil {
			b.state = stateDone
			return nil, nil, fmt.Errorf("%w: %w", ErrSource, err)
		}
		for _, doc := range docs {
			if err := b.Add(doc); err != nil {
				break
			}
		}
	}
	if b.err != nil {
		b.state = stateDone
		return nil, nil, b.err
	}
	b.logger.Debug("build: registration complete", slog.Int("notes", len(b.order)))

	b.state = stateResolving
	unresolved, err := b.resolveAll(ctx)
	b.state = stateDone
	if err != nil {
		return nil, nil, err
	}

	b.report.Notes = b.vault.Len()
	for _, refs := range unresolved {
		b.report.Unresolved = append(b.report.Unresolved, refs...)
	}
	for _, n := range b.vault.notes {
		b.report.Edges += len(n.Adjacencies)
	}
	b.report.Duration = time.Since(start)
	b.report.sort()

	b.logger.Debug("build: resolution complete",
		slog.Int("edges", b.report.Edges),
		slog.Int("unresolved", len(b.report.Unresolved)))

	report := b.report
	return b.vault, &report, nil
}

// resolveAll runs the resolution pass. Each task writes only the adjacency map
// of its own note and its own slot of the result slice; the index is read only.
func (b *Builder) resolveAll(ctx context.Context) ([][]UnresolvedRef, error) {
	out := make([][]UnresolvedRef, len(b.order))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, id := range b.order {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			out[i] = b.resolveNote(id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("vault: resolve: %w", err)
	}
	return out, nil
}

func (b *Builder) resolveNote(id NoteID) []UnresolvedRef {
	n := b.vault.notes[id]
	var missing []UnresolvedRef
	for _, ref := range b.extract(n.Content) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		target, ok := b.vault.Resolve(ref)
		if !ok {
			b.logger.Debug("build: unresolved reference",
				slog.String("path", n.Path),
				slog.String("target", ref))
			missing = append(missing, UnresolvedRef{Source: id, SourcePath: n.Path, Target: ref})
			continue
		}
		n.Adjacencies[target] = Connected
	}
	return missing
}

// Resolve maps a reference to a note id through the lookup index. A reference
// without an extension also matches the path with ".md" appended.
func (v *Vault) Resolve(ref string) (NoteID, bool) {
	if id, ok := v.IDOf(ref); ok {
		return id, true
	}
	if !strings.HasSuffix(ref, ".md") {
		if id, ok := v.byPath[ref+".md"]; ok {
			return id, true
		}
	}
	return NoteID{}, false
}

// Build is a shortcut for NewBuilder(opts...).Build(ctx) over the given documents.
func Build(ctx context.Context, docs []Document, opts ...BuilderOption) (*Vault, *Report, error) {
	b := NewBuilder(opts...)
	for _, doc := range docs {
		if err := b.Add(doc); err != nil {
			return nil, nil, err
		}
	}
	return b.Build(ctx)
}
