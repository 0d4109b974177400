package api

import (
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/noteservice"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteRef is a lightweight note reference (aliased from the domain layer).
type NoteRef = noteservice.NoteRef

// SearchResult is a single search hit (aliased from the index layer).
type SearchResult = index.SearchResult

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteRef `json:"notes" validate:"required"`
	Total int       `json:"total" example:"42" validate:"required"`
}

// BacklinksResponse lists the notes linking to a note.
type BacklinksResponse struct {
	Backlinks []NoteRef `json:"backlinks" validate:"required"`
}

// LookupResponse is returned by GET /lookup.
type LookupResponse struct {
	Key string `json:"key" example:"B" validate:"required"`
	ID  string `json:"id" example:"6ba7b810-9dad-51d1-80b4-00c04fd430c8" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []noteservice.GraphNode `json:"nodes" validate:"required"`
	Links []noteservice.GraphLink `json:"links" validate:"required"`
}
