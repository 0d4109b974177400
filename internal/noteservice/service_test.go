package noteservice_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/testutil"
	"github.com/starford/notegraph/internal/vault"
)

func paths(refs []noteservice.NoteRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Path
	}
	return out
}

func TestGetNote(t *testing.T) {
	svc, _ := testutil.TestService(t, testutil.SampleFiles())
	ctx := context.Background()

	for _, key := range []string{"b.md", "b", "B", vault.NewNoteID("b.md").String()} {
		n, err := svc.GetNote(ctx, key)
		if err != nil {
			t.Fatalf("GetNote(%q): %v", key, err)
		}
		if n.Path != "b.md" || n.Title != "B" {
			t.Errorf("GetNote(%q) = %+v", key, n.NoteRef)
		}
		if got := paths(n.Backlinks); len(got) != 2 || got[0] != "a.md" || got[1] != "sub/c.md" {
			t.Errorf("backlinks = %v", got)
		}
		if len(n.Links) != 0 {
			t.Errorf("links = %v", n.Links)
		}
	}

	c, err := svc.GetNote(ctx, "C")
	if err != nil {
		t.Fatal(err)
	}
	if c.Frontmatter["title"] != "C" {
		t.Errorf("frontmatter = %v", c.Frontmatter)
	}

	if _, err := svc.GetNote(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNote(nope) = %v, want ErrNotFound", err)
	}
}

func TestBacklinksAndDuplicateTitle(t *testing.T) {
	svc, _ := testutil.TestService(t, testutil.SampleFiles())
	ctx := context.Background()

	bl, err := svc.Backlinks(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if got := paths(bl); len(got) != 1 || got[0] != "sub/c.md" {
		t.Errorf("backlinks(A) = %v", got)
	}

	id, err := svc.Lookup(ctx, "Same")
	if err != nil {
		t.Fatal(err)
	}
	if id != vault.NewNoteID("dup/two.md") {
		t.Errorf("Lookup(Same) = %s, want the later note", id)
	}

	report, err := svc.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.DuplicateTitles) != 1 || len(report.Unresolved) != 1 || report.Unresolved[0].Target != "Missing" {
		t.Errorf("report = %+v", report)
	}
}

func TestListNotesPaging(t *testing.T) {
	svc, _ := testutil.TestService(t, testutil.SampleFiles())
	ctx := context.Background()

	items, total, err := svc.ListNotes(ctx, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Errorf("total = %d", total)
	}
	if got := paths(items); len(got) != 2 || got[0] != "b.md" || got[1] != "dup/one.md" {
		t.Errorf("page = %v", got)
	}
	items, _, _ = svc.ListNotes(ctx, 10, 99)
	if len(items) != 0 {
		t.Errorf("offset past end returned %v", items)
	}
}

func TestGraph(t *testing.T) {
	svc, _ := testutil.TestService(t, testutil.SampleFiles())
	nodes, links, err := svc.Graph(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 5 || len(links) != 3 {
		t.Errorf("nodes = %d, links = %d", len(nodes), len(links))
	}
	for _, l := range links {
		if l.Type != "connected" {
			t.Errorf("link type = %q", l.Type)
		}
	}
}

func TestNotReadyBeforeFirstBuild(t *testing.T) {
	store := testutil.TestVault(t, testutil.SampleFiles())
	svc := noteservice.NewService(store, testutil.TestDB(t), nil)
	if _, err := svc.GetNote(context.Background(), "a.md"); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestRebuildFailureKeepsPreviousVault(t *testing.T) {
	svc, store := testutil.TestService(t, testutil.SampleFiles())
	before, _ := svc.Vault()

	// Removing the root makes the source unreadable.
	if err := os.RemoveAll(store.Root()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Rebuild(context.Background()); !errors.Is(err, vault.ErrSource) {
		t.Fatalf("Rebuild = %v, want ErrSource", err)
	}
	after, _ := svc.Vault()
	if after != before {
		t.Error("failed rebuild replaced the current vault")
	}
}

func TestSearch(t *testing.T) {
	svc, _ := testutil.TestService(t, testutil.SampleFiles())
	results, err := svc.Search(context.Background(), "no links", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Path != "b.md" {
		t.Errorf("results = %+v", results)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	svc, store := testutil.TestService(t, testutil.SampleFiles())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	rebuilds := 0
	go svc.Watch(ctx, func(*vault.Report) {
		mu.Lock()
		rebuilds++
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(store.Root(), "new.md"), []byte("# New\n[[B]]"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		bl, err := svc.Backlinks(context.Background(), "b.md")
		return err == nil && len(bl) == 3
	}, "new note not picked up by watcher")

	eventually(t, time.Second, 20*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return rebuilds > 0
	}, "rebuild callback not called")
}

func TestWatch_NewDirectory(t *testing.T) {
	svc, store := testutil.TestService(t, testutil.SampleFiles())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go svc.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(store.Root(), "fresh")
	_ = os.MkdirAll(dir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := svc.Lookup(context.Background(), "Deep")
		return err == nil
	}, "note in new directory not picked up by watcher")
}
