// Package vault holds the note graph and the builder that resolves links into it.
package vault

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// ErrInvariant is wrapped by every error returned from Validate.
var ErrInvariant = errors.New("vault: invariant violated")

// Vault is a directed graph whose nodes are notes.
//
// Notes are stored in a map keyed by id and each note carries its own outgoing
// adjacency map. A secondary index maps paths and titles to ids. The index is
// only written by the builder while registering notes.
//
// A built Vault is safe for concurrent readers as long as nobody mutates the
// notes returned by Get or All.
type Vault struct {
	notes   map[NoteID]*Note
	byPath  map[string]NoteID
	byTitle map[string]NoteID
}

func newVault(capacity int) *Vault {
	return &Vault{
		notes:   make(map[NoteID]*Note, capacity),
		byPath:  make(map[string]NoteID, capacity),
		byTitle: make(map[string]NoteID, capacity),
	}
}

// register inserts n and indexes it by path and title. It returns the id that
// previously owned n.Title, if any. Empty titles are not indexed.
func (v *Vault) register(id NoteID, n *Note) (NoteID, bool) {
	v.notes[id] = n
	v.byPath[n.Path] = id
	if n.Title == "" {
		return NoteID{}, false
	}
	prev, collided := v.byTitle[n.Title]
	v.byTitle[n.Title] = id
	return prev, collided
}

// Get returns the note with the given id. The returned pointer may be used to
// modify the note; callers must not add adjacencies to ids absent from the vault.
func (v *Vault) Get(id NoteID) (*Note, bool) {
	n, ok := v.notes[id]
	return n, ok
}

// Len returns the number of notes in the vault.
func (v *Vault) Len() int {
	return len(v.notes)
}

// IsEmpty reports whether the vault holds no notes.
func (v *Vault) IsEmpty() bool {
	return len(v.notes) == 0
}

// IDOf returns the id of the note with the given path or title.
//
// Paths are unique, so a path lookup is exact. A path match always wins over a
// title match. Titles are not unique: when several notes share a title, the id
// returned belongs to the note registered last during the build, which depends
// on the order the source produced the documents.
func (v *Vault) IDOf(titleOrPath string) (NoteID, bool) {
	if id, ok := v.byPath[titleOrPath]; ok {
		return id, true
	}
	id, ok := v.byTitle[titleOrPath]
	return id, ok
}

// All yields every note in an arbitrary order. Each call starts a new traversal.
func (v *Vault) All() iter.Seq2[NoteID, *Note] {
	return func(yield func(NoteID, *Note) bool) {
		for id, n := range v.notes {
			if !yield(id, n) {
				return
			}
		}
	}
}

// IDs returns all note ids ordered by note path.
func (v *Vault) IDs() []NoteID {
	ids := slices.Collect(maps.Keys(v.notes))
	slices.SortFunc(ids, func(a, b NoteID) int {
		return strings.Compare(v.notes[a].Path, v.notes[b].Path)
	})
	return ids
}

// Links yields the outgoing edges of the note with the given id.
func (v *Vault) Links(id NoteID) iter.Seq2[NoteID, Edge] {
	return func(yield func(NoteID, Edge) bool) {
		n, ok := v.notes[id]
		if !ok {
			return
		}
		for target, e := range n.Adjacencies {
			if !yield(target, e) {
				return
			}
		}
	}
}

// Backlinks yields the ids of notes holding a Connected edge to id.
//
// The sequence is computed lazily by scanning every note, so each traversal
// costs O(N). An id that is not in the vault yields nothing.
func (v *Vault) Backlinks(id NoteID) iter.Seq[NoteID] {
	return func(yield func(NoteID) bool) {
		for src, n := range v.notes {
			if n.Adjacencies[id] != Connected {
				continue
			}
			if !yield(src) {
				return
			}
		}
	}
}

// Keys yields the merged lookup index. A path shadows an equal title.
func (v *Vault) Keys() iter.Seq2[string, NoteID] {
	return func(yield func(string, NoteID) bool) {
		for title, id := range v.byTitle {
			if _, shadowed := v.byPath[title]; shadowed {
				continue
			}
			if !yield(title, id) {
				return
			}
		}
		for path, id := range v.byPath {
			if !yield(path, id) {
				return
			}
		}
	}
}

// Equal reports whether v and o hold equal notes under the same ids.
// The lookup index is derived state and is not compared.
func (v *Vault) Equal(o *Vault) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Len() != o.Len() {
		return false
	}
	for id, n := range v.notes {
		other, ok := o.notes[id]
		if !ok || !n.Equal(other) {
			return false
		}
	}
	return true
}

// Drain yields every note by value and leaves the vault empty. Notes are
// removed as they are yielded, so stopping early keeps the rest in place.
func (v *Vault) Drain() iter.Seq2[NoteID, Note] {
	return func(yield func(NoteID, Note) bool) {
		for id, n := range v.notes {
			delete(v.notes, id)
			delete(v.byPath, n.Path)
			if cur, ok := v.byTitle[n.Title]; ok && cur == id {
				delete(v.byTitle, n.Title)
			}
			if !yield(id, *n) {
				return
			}
		}
	}
}

// Validate recomputes the structural invariants: every indexed id exists, every
// note is reachable through its path, and every edge points at an existing note.
func (v *Vault) Validate() error {
	for path, id := range v.byPath {
		n, ok := v.notes[id]
		if !ok {
			return fmt.Errorf("%w: path %q indexes missing note %s", ErrInvariant, path, id)
		}
		if n.Path != path {
			return fmt.Errorf("%w: path %q indexes note at %q", ErrInvariant, path, n.Path)
		}
	}
	for title, id := range v.byTitle {
		if _, ok := v.notes[id]; !ok {
			return fmt.Errorf("%w: title %q indexes missing note %s", ErrInvariant, title, id)
		}
	}
	for id, n := range v.notes {
		if got, ok := v.byPath[n.Path]; !ok || got != id {
			return fmt.Errorf("%w: note %s not indexed by path %q", ErrInvariant, id, n.Path)
		}
		for target, e := range n.Adjacencies {
			if _, ok := v.notes[target]; !ok {
				return fmt.Errorf("%w: note %s has %s edge to missing note %s", ErrInvariant, id, e, target)
			}
		}
	}
	return nil
}
