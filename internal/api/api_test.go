package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/testutil"
	"github.com/starford/notegraph/internal/vault"
)

// testEnv builds the sample vault and returns a router over it. An empty
// token disables auth.
func testEnv(t *testing.T, token string) (*noteservice.Service, http.Handler, string) {
	t.Helper()
	svc, store := testutil.TestService(t, testutil.SampleFiles())
	return svc, NewRouter(svc, token != "", token, nil, nil), store.Root()
}

func do(t *testing.T, h http.Handler, method, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, target, err)
		}
	}
	return w
}

func TestGetNote(t *testing.T) {
	_, router, _ := testEnv(t, "")

	for _, target := range []string{"/notes/b.md", "/notes/b", "/notes/B", "/notes/sub%2Fc.md", "/notes/sub/c.md"} {
		var got NoteDetail
		w := do(t, router, http.MethodGet, target, &got)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, body = %s", target, w.Code, w.Body.String())
		}
		if got.ID == "" || got.Path == "" || got.Checksum == "" {
			t.Errorf("GET %s = %+v", target, got)
		}
	}

	var c NoteDetail
	do(t, router, http.MethodGet, "/notes/sub/c.md", &c)
	if c.Title != "C" || len(c.Links) != 2 {
		t.Errorf("c = %+v", c)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router, _ := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes/Missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty key status = %d, want 400", w.Code)
	}
}

func TestBacklinks(t *testing.T) {
	_, router, _ := testEnv(t, "")
	var resp BacklinksResponse
	w := do(t, router, http.MethodGet, "/notes/b.md/backlinks", &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(resp.Backlinks) != 2 || resp.Backlinks[0].Path != "a.md" || resp.Backlinks[1].Path != "sub/c.md" {
		t.Errorf("backlinks = %+v", resp.Backlinks)
	}

	do(t, router, http.MethodGet, "/notes/dup/one.md/backlinks", &resp)
	if resp.Backlinks == nil || len(resp.Backlinks) != 0 {
		t.Errorf("want empty non-nil backlinks, got %#v", resp.Backlinks)
	}
}

func TestLookup(t *testing.T) {
	_, router, _ := testEnv(t, "")
	var resp LookupResponse
	if w := do(t, router, http.MethodGet, "/lookup?key=Same", &resp); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp.ID != vault.NewNoteID("dup/two.md").String() {
		t.Errorf("Lookup(Same) = %s", resp.ID)
	}
	if w := do(t, router, http.MethodGet, "/lookup", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing key status = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/lookup?key=nothing", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown key status = %d", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router, _ := testEnv(t, "")
	var resp NoteListResponse
	do(t, router, http.MethodGet, "/notes?limit=2", &resp)
	if resp.Total != 5 || len(resp.Notes) != 2 || resp.Notes[0].Path != "a.md" {
		t.Errorf("list = %+v", resp)
	}
}

func TestGraphAndReport(t *testing.T) {
	_, router, _ := testEnv(t, "")

	var g GraphResponse
	do(t, router, http.MethodGet, "/graph", &g)
	if len(g.Nodes) != 5 || len(g.Links) != 3 {
		t.Errorf("graph nodes = %d, links = %d", len(g.Nodes), len(g.Links))
	}

	var report vault.Report
	do(t, router, http.MethodGet, "/report", &report)
	if report.Notes != 5 || len(report.Unresolved) != 1 || report.Unresolved[0].Target != "Missing" {
		t.Errorf("report = %+v", report)
	}
}

func TestRebuild(t *testing.T) {
	svc, _, root := testEnv(t, "")
	var called *vault.Report
	router := NewRouter(svc, false, "", nil, func(r *vault.Report) { called = r })

	if err := os.WriteFile(filepath.Join(root, "d.md"), []byte("# D\n[[Missing]]"), 0o644); err != nil {
		t.Fatal(err)
	}
	var report vault.Report
	if w := do(t, router, http.MethodPost, "/rebuild", &report); w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if report.Notes != 6 || len(report.Unresolved) != 2 {
		t.Errorf("report = %+v", report)
	}
	if called == nil {
		t.Error("rebuild callback not called")
	}
	if w := do(t, router, http.MethodGet, "/notes/D", nil); w.Code != http.StatusOK {
		t.Errorf("new note not served after rebuild: %d", w.Code)
	}
}

func TestSearch(t *testing.T) {
	_, router, _ := testEnv(t, "")
	var resp SearchResponse
	do(t, router, http.MethodGet, "/search?q=links", &resp)
	if len(resp.Results) == 0 {
		t.Error("expected search hits")
	}
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d", w.Code)
	}
}

func TestNotReady(t *testing.T) {
	store := testutil.TestVault(t, testutil.SampleFiles())
	svc := noteservice.NewService(store, testutil.TestDB(t), nil)
	router := NewRouter(svc, false, "", nil, nil)
	if w := do(t, router, http.MethodGet, "/notes/a.md", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestAuth(t *testing.T) {
	_, router, _ := testEnv(t, "secret")

	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", w.Code)
	}

	for token, want := range map[string]int{
		"Bearer secret": http.StatusOK,
		"Bearer wrong":  http.StatusUnauthorized,
		"secret":        http.StatusUnauthorized,
	} {
		req := httptest.NewRequest(http.MethodGet, "/notes", nil)
		req.Header.Set("Authorization", token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("Authorization %q: status = %d, want %d", token, w.Code, want)
		}
	}
}

func TestGetNote_ETag(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes/a.md", nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	for header, want := range map[string]int{
		etag:               http.StatusNotModified,
		`"stale", ` + etag: http.StatusNotModified,
		"W/" + etag:        http.StatusNotModified,
		"*":                http.StatusNotModified,
		`"stale"`:          http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/notes/a.md", nil)
		req.Header.Set("If-None-Match", header)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("If-None-Match %s: status = %d, want %d", header, w.Code, want)
		}
	}
}
