package noteservice

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/vault"
)

// NoteRef identifies a note in responses.
type NoteRef struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Title string `json:"title"`
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	NoteRef
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       []NoteRef      `json:"links"`
	Backlinks   []NoteRef      `json:"backlinks"`
}

// GraphNode is a node of the exported graph.
type GraphNode struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

// GraphLink is a directed edge of the exported graph.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type snapshot struct {
	vault   *vault.Vault
	report  *vault.Report
	builtAt time.Time
}

// Service owns the current vault, rebuilds it from storage and persists each
// build to the index. Readers always see a complete vault: a rebuild swaps the
// whole snapshot at once.
type Service struct {
	store  storage.Provider
	db     index.NoteIndex
	logger *slog.Logger
	opts   []vault.BuilderOption

	rebuildMu sync.Mutex
	current   atomic.Pointer[snapshot]
}

// NewService creates a new note service. Builder options are applied to every rebuild.
func NewService(store storage.Provider, db index.NoteIndex, logger *slog.Logger, opts ...vault.BuilderOption) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, db: db, logger: logger, opts: opts}
}

// Rebuild builds a fresh vault from storage, saves it to the index and makes
// it current. On failure the previous vault stays current.
func (s *Service) Rebuild(ctx context.Context) (*vault.Report, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	opts := append([]vault.BuilderOption{vault.WithSource(s.store), vault.WithLogger(s.logger)}, s.opts...)
	v, report, err := vault.NewBuilder(opts...).Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("noteservice: build: %w", err)
	}
	if s.db != nil {
		if err := s.db.Save(ctx, v); err != nil {
			return nil, fmt.Errorf("noteservice: persist: %w", err)
		}
	}
	s.current.Store(&snapshot{vault: v, report: report, builtAt: time.Now()})
	s.logger.Info("vault rebuilt", slog.Any("report", report))
	return report, nil
}

// Vault returns the current vault, or apperr.ErrNotReady before the first build.
func (s *Service) Vault() (*vault.Vault, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, apperr.ErrNotReady
	}
	return snap.vault, nil
}

// Report returns the report of the current build.
func (s *Service) Report(_ context.Context) (*vault.Report, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, apperr.ErrNotReady
	}
	return snap.report, nil
}

// Lookup resolves key to a note id. key may be a note id, a path or a title;
// a path without the .md extension also matches.
func (s *Service) Lookup(_ context.Context, key string) (vault.NoteID, error) {
	v, err := s.Vault()
	if err != nil {
		return vault.NoteID{}, err
	}
	return lookup(v, key)
}

func lookup(v *vault.Vault, key string) (vault.NoteID, error) {
	if id, err := vault.ParseNoteID(key); err == nil {
		if _, ok := v.Get(id); ok {
			return id, nil
		}
	}
	if id, ok := v.Resolve(strings.TrimSpace(key)); ok {
		return id, nil
	}
	return vault.NoteID{}, apperr.ErrNotFound
}

// GetNote returns a note with its outgoing links and backlinks.
func (s *Service) GetNote(_ context.Context, key string) (*NoteDetail, error) {
	v, err := s.Vault()
	if err != nil {
		return nil, err
	}
	id, err := lookup(v, key)
	if err != nil {
		return nil, err
	}
	n, _ := v.Get(id)
	parsed := parser.Parse([]byte(n.Content))

	var links []NoteRef
	for target := range v.Links(id) {
		links = append(links, ref(v, target))
	}
	sortRefs(links)

	return &NoteDetail{
		NoteRef:     ref(v, id),
		Content:     n.Content,
		Checksum:    checksum.Sum(n.Content),
		Frontmatter: parsed.Frontmatter,
		Links:       nonNilSlice(links),
		Backlinks:   nonNilSlice(backlinkRefs(v, id)),
	}, nil
}

// Backlinks returns the notes linking to the note identified by key.
func (s *Service) Backlinks(_ context.Context, key string) ([]NoteRef, error) {
	v, err := s.Vault()
	if err != nil {
		return nil, err
	}
	id, err := lookup(v, key)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(backlinkRefs(v, id)), nil
}

// ListNotes returns a page of notes ordered by path.
func (s *Service) ListNotes(_ context.Context, limit, offset int) ([]NoteRef, int, error) {
	v, err := s.Vault()
	if err != nil {
		return nil, 0, err
	}
	ids := v.IDs()
	total := len(ids)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	items := make([]NoteRef, 0, end-offset)
	for _, id := range ids[offset:end] {
		items = append(items, ref(v, id))
	}
	return items, total, nil
}

// Graph returns all nodes and edges of the current vault.
func (s *Service) Graph(_ context.Context) ([]GraphNode, []GraphLink, error) {
	v, err := s.Vault()
	if err != nil {
		return nil, nil, err
	}
	ids := v.IDs()
	nodes := make([]GraphNode, 0, len(ids))
	links := []GraphLink{}
	for _, id := range ids {
		n, _ := v.Get(id)
		nodes = append(nodes, GraphNode{ID: id.String(), Path: n.Path, Title: n.Title})
		var out []GraphLink
		for target, e := range v.Links(id) {
			out = append(out, GraphLink{Source: id.String(), Target: target.String(), Type: e.String()})
		}
		slices.SortFunc(out, func(a, b GraphLink) int { return cmp.Compare(a.Target, b.Target) })
		links = append(links, out...)
	}
	return nodes, links, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("noteservice: search: no index configured")
	}
	return s.db.Search(ctx, query, limit)
}

func ref(v *vault.Vault, id vault.NoteID) NoteRef {
	n, _ := v.Get(id)
	return NoteRef{ID: id.String(), Path: n.Path, Title: n.Title}
}

func backlinkRefs(v *vault.Vault, id vault.NoteID) []NoteRef {
	var out []NoteRef
	for from := range v.Backlinks(id) {
		out = append(out, ref(v, from))
	}
	sortRefs(out)
	return out
}

func sortRefs(refs []NoteRef) {
	slices.SortFunc(refs, func(a, b NoteRef) int { return cmp.Compare(a.Path, b.Path) })
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
