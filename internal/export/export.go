// Package export serializes a built vault to JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/starford/notegraph/internal/vault"
)

// NoteRecord is the persisted form of one note.
type NoteRecord struct {
	Title       string                      `json:"title"`
	Path        string                      `json:"path"`
	Content     string                      `json:"content"`
	Adjacencies map[vault.NoteID]vault.Edge `json:"adjacencies"`
}

// Document is the persisted form of a vault.
type Document struct {
	Notes    map[vault.NoteID]NoteRecord `json:"notes"`
	IDLookup map[string]vault.NoteID     `json:"id_lookup"`
}

// FromVault converts v into its persisted form.
func FromVault(v *vault.Vault) *Document {
	doc := &Document{
		Notes:    make(map[vault.NoteID]NoteRecord, v.Len()),
		IDLookup: make(map[string]vault.NoteID, 2*v.Len()),
	}
	for id, n := range v.All() {
		adj := make(map[vault.NoteID]vault.Edge, len(n.Adjacencies))
		for target, e := range n.Adjacencies {
			adj[target] = e
		}
		doc.Notes[id] = NoteRecord{
			Title:       n.Title,
			Path:        n.Path,
			Content:     n.Content,
			Adjacencies: adj,
		}
	}
	for key, id := range v.Keys() {
		doc.IDLookup[key] = id
	}
	return doc
}

// Write encodes v as indented JSON. encoding/json sorts map keys, so the
// output is stable for a given vault.
func Write(w io.Writer, v *vault.Vault) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromVault(v)); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}

// Read decodes a document previously produced by Write.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("export: decode: %w", err)
	}
	return &doc, nil
}

// Documents returns the raw inputs needed to rebuild the vault described by
// d, ordered by path, so a Document can be used as a vault.Source. Titles
// shared by several notes may resolve differently than in the original build.
func (d *Document) Documents() ([]vault.Document, error) {
	out := make([]vault.Document, 0, len(d.Notes))
	for _, n := range d.Notes {
		out = append(out, vault.Document{Path: n.Path, Title: n.Title, Content: n.Content})
	}
	slices.SortFunc(out, func(a, b vault.Document) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out, nil
}
