package index

import (
	"context"

	"github.com/starford/notegraph/internal/vault"
)

// NoteIndex defines the persisted view of a built vault.
// Consumers should depend on this interface rather than the concrete *DB type.
type NoteIndex interface {
	Save(ctx context.Context, v *vault.Vault) error
	GetNote(ctx context.Context, id string) (*NoteRow, error)
	Lookup(ctx context.Context, key string) (string, error)
	Backlinks(ctx context.Context, id string) ([]string, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
