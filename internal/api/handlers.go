package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/noteservice"
)

const backlinksSuffix = "/backlinks"

// Handler holds API route handlers.
type Handler struct {
	svc       *noteservice.Service
	onRebuild noteservice.RebuildCallback
}

// NewHandler creates a new Handler. onRebuild, if non-nil, is called after
// every successful POST /rebuild.
func NewHandler(svc *noteservice.Service, onRebuild noteservice.RebuildCallback) *Handler {
	return &Handler{svc: svc, onRebuild: onRebuild}
}

// noteKey extracts the key after /notes/. Encoded slashes (sub%2Fnote.md)
// are accepted.
func noteKey(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary	List notes ordered by path
//	@Tags		notes
//	@Produce	json
//	@Param		limit	query		int	false	"Page size"
//	@Param		offset	query		int	false	"Page offset"
//	@Success	200		{object}	NoteListResponse
//	@Security	BearerAuth
//	@Router		/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListNotes(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/{key} and GET /api/notes/{key}/backlinks.
// key is a note id, a path (with or without .md) or a title.
//
//	@Summary	Get a note with its links and backlinks
//	@Tags		notes
//	@Produce	json
//	@Param		key	path		string	true	"Note id, path or title"
//	@Success	200	{object}	NoteDetail
//	@Success	304
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{key} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	key := noteKey(r)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	if base, ok := strings.CutSuffix(key, backlinksSuffix); ok && base != "" {
		h.backlinks(w, r, base)
		return
	}
	note, err := h.svc.GetNote(r.Context(), key)
	if err != nil {
		writeServiceError(w, "get note", err)
		return
	}
	etag := checksum.ETag(note.Checksum)
	w.Header().Set("ETag", etag)
	if checksum.Match(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) backlinks(w http.ResponseWriter, r *http.Request, key string) {
	refs, err := h.svc.Backlinks(r.Context(), key)
	if err != nil {
		writeServiceError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: refs})
}

// Lookup handles GET /api/lookup?key=.
//
//	@Summary	Resolve a path or title to a note id
//	@Tags		notes
//	@Produce	json
//	@Param		key	query		string	true	"Path or title"
//	@Success	200	{object}	LookupResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/lookup [get]
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'key' is required"))
		return
	}
	id, err := h.svc.Lookup(r.Context(), key)
	if err != nil {
		writeServiceError(w, "lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, LookupResponse{Key: key, ID: id.String()})
}

// Search handles GET /api/search.
//
//	@Summary	Full-text search across notes
//	@Tags		search
//	@Produce	json
//	@Param		q		query		string	true	"Search query"
//	@Param		limit	query		int		false	"Max results"
//	@Success	200		{object}	SearchResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary	Get the link graph
//	@Tags		graph
//	@Produce	json
//	@Success	200	{object}	GraphResponse
//	@Security	BearerAuth
//	@Router		/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeServiceError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

// Report handles GET /api/report.
//
//	@Summary	Diagnostics of the current build
//	@Tags		build
//	@Produce	json
//	@Success	200	{object}	vault.Report
//	@Failure	503	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/report [get]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context())
	if err != nil {
		writeServiceError(w, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Rebuild handles POST /api/rebuild.
//
//	@Summary	Rebuild the vault from disk
//	@Tags		build
//	@Produce	json
//	@Success	200	{object}	vault.Report
//	@Failure	409	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Rebuild(r.Context())
	if err != nil {
		writeServiceError(w, "rebuild", err)
		return
	}
	if h.onRebuild != nil {
		h.onRebuild(report)
	}
	writeJSON(w, http.StatusOK, report)
}
