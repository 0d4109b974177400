package vault

import (
	"cmp"
	"log/slog"
	"slices"
	"time"
)

// TitleCollision records a title registered by more than one note. Winner is
// the note that IDOf returns for the title.
type TitleCollision struct {
	Title    string `json:"title"`
	Previous NoteID `json:"previous"`
	Winner   NoteID `json:"winner"`
}

// UnresolvedRef is a reference whose target matched no path or title.
type UnresolvedRef struct {
	Source     NoteID `json:"source"`
	SourcePath string `json:"source_path"`
	Target     string `json:"target"`
}

// Report summarises a build. Collisions are kept in registration order;
// unresolved references are sorted by source path then target.
type Report struct {
	Notes           int              `json:"notes"`
	Edges           int              `json:"edges"`
	DuplicateTitles []TitleCollision `json:"duplicate_titles"`
	Unresolved      []UnresolvedRef  `json:"unresolved"`
	Duration        time.Duration    `json:"duration_ns"`
}

// Clean reports whether the build produced no collisions and no unresolved references.
func (r *Report) Clean() bool {
	return len(r.DuplicateTitles) == 0 && len(r.Unresolved) == 0
}

// LogValue implements slog.LogValuer.
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("notes", r.Notes),
		slog.Int("edges", r.Edges),
		slog.Int("duplicate_titles", len(r.DuplicateTitles)),
		slog.Int("unresolved", len(r.Unresolved)),
		slog.Duration("duration", r.Duration),
	)
}

func (r *Report) sort() {
	slices.SortStableFunc(r.Unresolved, func(a, b UnresolvedRef) int {
		return cmp.Or(
			cmp.Compare(a.SourcePath, b.SourcePath),
			cmp.Compare(a.Target, b.Target),
		)
	})
}
