package vault

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// namespace scopes path-derived note ids so they never collide with ids
// minted for other purposes.
var namespace = uuid.MustParse("6f1c3a52-8f0e-5d0a-9d4b-3c2e7a1b0f64")

// NoteID identifies a note within a vault. It is derived from the note's path,
// so a note keeps its id across rebuilds as long as it is not moved.
type NoteID uuid.UUID

// NewNoteID returns the id for the note stored at path.
func NewNoteID(path string) NoteID {
	return NoteID(uuid.NewSHA1(namespace, []byte(path)))
}

// ParseNoteID parses the canonical text form produced by String.
func ParseNoteID(s string) (NoteID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NoteID{}, fmt.Errorf("vault: parse note id %q: %w", s, err)
	}
	return NoteID(u), nil
}

// String returns the canonical UUID form, safe for use as a file name.
func (id NoteID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler so ids work as JSON map keys.
func (id NoteID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NoteID) UnmarshalText(b []byte) error {
	parsed, err := ParseNoteID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Edge tags the relationship recorded from one note to another.
type Edge uint8

const (
	// Connected means the source note contains a resolved reference to the target.
	Connected Edge = iota + 1
)

func (e Edge) String() string {
	switch e {
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("edge(%d)", uint8(e))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Edge) MarshalText() ([]byte, error) {
	if e != Connected {
		return nil, fmt.Errorf("vault: unknown edge %d", uint8(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Edge) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connected":
		*e = Connected
		return nil
	default:
		return fmt.Errorf("vault: unknown edge %q", b)
	}
}

// Note is one ingested document.
type Note struct {
	Title   string
	Path    string
	Content string
	// Adjacencies holds the outgoing edges of this note keyed by target.
	Adjacencies map[NoteID]Edge
}

// Equal reports whether n and o carry the same fields and the same outgoing edges.
func (n *Note) Equal(o *Note) bool {
	if n == nil || o == nil {
		return n == o
	}
	return n.Title == o.Title &&
		n.Path == o.Path &&
		n.Content == o.Content &&
		maps.Equal(n.Adjacencies, o.Adjacencies)
}
