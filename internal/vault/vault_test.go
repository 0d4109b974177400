package vault

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"
)

func mustBuild(t *testing.T, docs []Document, opts ...BuilderOption) (*Vault, *Report) {
	t.Helper()
	v, r, err := Build(context.Background(), docs, opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := v.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return v, r
}

func mustID(t *testing.T, v *Vault, key string) NoteID {
	t.Helper()
	id, ok := v.IDOf(key)
	if !ok {
		t.Fatalf("IDOf(%q): not found", key)
	}
	return id
}

func count[K, V any](seq iter.Seq2[K, V]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}

var sampleDocs = []Document{
	{Path: "a.md", Title: "A", Content: "links to [[B]] and [[c.md]]"},
	{Path: "b.md", Title: "B", Content: "back to [[A]]"},
	{Path: "c.md", Title: "C", Content: "to [[B]] and [[Missing]]"},
}

func TestEndToEndBacklinks(t *testing.T) {
	v, r := mustBuild(t, []Document{
		{Path: "a.md", Title: "A", Content: "links to [[B]]"},
		{Path: "b.md", Title: "B", Content: "no links"},
	})

	a, b := mustID(t, v, "a.md"), mustID(t, v, "b.md")
	if got := slices.Collect(v.Backlinks(b)); !slices.Equal(got, []NoteID{a}) {
		t.Errorf("backlinks(b) = %v, want [%s]", got, a)
	}
	if got := slices.Collect(v.Backlinks(a)); len(got) != 0 {
		t.Errorf("backlinks(a) = %v, want empty", got)
	}
	if r.Edges != 1 || !r.Clean() {
		t.Errorf("report = %+v", r)
	}
}

func TestUnresolvedReferenceIsReported(t *testing.T) {
	v, r := mustBuild(t, []Document{
		{Path: "a.md", Title: "A", Content: "links to [[Missing]]"},
	})
	a := mustID(t, v, "a.md")
	if n := count(v.Links(a)); n != 0 {
		t.Errorf("edges from a = %d, want 0", n)
	}
	if len(r.Unresolved) != 1 {
		t.Fatalf("unresolved = %v, want 1 entry", r.Unresolved)
	}
	if got := r.Unresolved[0]; got.Source != a || got.Target != "Missing" || got.SourcePath != "a.md" {
		t.Errorf("unresolved[0] = %+v", got)
	}
}

func TestLenMatchesIteration(t *testing.T) {
	v, _ := mustBuild(t, sampleDocs)
	if v.Len() != count(v.All()) {
		t.Errorf("Len = %d, iterated %d", v.Len(), count(v.All()))
	}
	// A second traversal starts over.
	if count(v.All()) != 3 {
		t.Error("All is not restartable")
	}
	if v.IsEmpty() {
		t.Error("IsEmpty = true for populated vault")
	}
	empty, _ := mustBuild(t, nil)
	if !empty.IsEmpty() || empty.Len() != 0 || count(empty.All()) != 0 {
		t.Error("empty vault reports notes")
	}
}

func TestEdgeBacklinkDuality(t *testing.T) {
	v, _ := mustBuild(t, sampleDocs)
	for a, n := range v.All() {
		for b, e := range n.Adjacencies {
			if e != Connected {
				continue
			}
			if !slices.Contains(slices.Collect(v.Backlinks(b)), a) {
				t.Errorf("%s -> %s but %s not in backlinks", n.Path, b, n.Path)
			}
		}
	}
	for b := range v.All() {
		for a := range v.Backlinks(b) {
			src, _ := v.Get(a)
			if src.Adjacencies[b] != Connected {
				t.Errorf("backlink %s of %s has no edge", a, b)
			}
		}
	}
}

func TestBacklinksUnknownID(t *testing.T) {
	v, _ := mustBuild(t, sampleDocs)
	if got := slices.Collect(v.Backlinks(NewNoteID("nope.md"))); len(got) != 0 {
		t.Errorf("backlinks of unknown id = %v", got)
	}
	if _, ok := v.Get(NewNoteID("nope.md")); ok {
		t.Error("Get of unknown id succeeded")
	}
	if _, ok := v.IDOf("nope"); ok {
		t.Error("IDOf of unknown key succeeded")
	}
}

func TestIDOfPathIsStable(t *testing.T) {
	v, _ := mustBuild(t, sampleDocs)
	first := mustID(t, v, "b.md")
	for range 5 {
		if got := mustID(t, v, "b.md"); got != first {
			t.Fatalf("IDOf changed: %s != %s", got, first)
		}
	}
	if first != NewNoteID("b.md") {
		t.Error("id is not derived from path")
	}
}

func TestDuplicateTitleLastWins(t *testing.T) {
	v, r := mustBuild(t, []Document{
		{Path: "one.md", Title: "Same", Content: ""},
		{Path: "two.md", Title: "Same", Content: ""},
		{Path: "ref.md", Title: "Ref", Content: "[[Same]]"},
	})
	two := mustID(t, v, "two.md")
	if got := mustID(t, v, "Same"); got != two {
		t.Errorf("IDOf(Same) = %s, want later note %s", got, two)
	}
	if len(r.DuplicateTitles) != 1 {
		t.Fatalf("collisions = %v", r.DuplicateTitles)
	}
	c := r.DuplicateTitles[0]
	if c.Title != "Same" || c.Previous != mustID(t, v, "one.md") || c.Winner != two {
		t.Errorf("collision = %+v", c)
	}
	if got := slices.Collect(v.Backlinks(two)); len(got) != 1 {
		t.Errorf("reference should resolve to the winner, backlinks = %v", got)
	}
}

func TestPathShadowsTitle(t *testing.T) {
	v, _ := mustBuild(t, []Document{
		{Path: "x.md", Title: "y.md", Content: ""},
		{Path: "y.md", Title: "Y", Content: ""},
	})
	if got := mustID(t, v, "y.md"); got != NewNoteID("y.md") {
		t.Errorf("IDOf(y.md) returned the title match")
	}
	keys := map[string]NoteID{}
	for k, id := range v.Keys() {
		if _, dup := keys[k]; dup {
			t.Errorf("key %q yielded twice", k)
		}
		keys[k] = id
	}
	if keys["y.md"] != NewNoteID("y.md") {
		t.Error("Keys does not let the path win")
	}
}

func TestEqualityIsOrderIndependent(t *testing.T) {
	abc, _ := mustBuild(t, sampleDocs)
	cab, _ := mustBuild(t, []Document{sampleDocs[2], sampleDocs[0], sampleDocs[1]})

	if !abc.Equal(abc) {
		t.Error("not reflexive")
	}
	if !abc.Equal(cab) || !cab.Equal(abc) {
		t.Error("stores built in different orders differ")
	}

	changed := slices.Clone(sampleDocs)
	changed[1].Content = "no links"
	other, _ := mustBuild(t, changed)
	if abc.Equal(other) || other.Equal(abc) {
		t.Error("stores with different edges compare equal")
	}

	fewer, _ := mustBuild(t, sampleDocs[:2])
	if abc.Equal(fewer) {
		t.Error("stores with different cardinality compare equal")
	}
}

func TestExtensionlessReference(t *testing.T) {
	v, r := mustBuild(t, []Document{
		{Path: "notes/target.md", Title: "Different", Content: ""},
		{Path: "src.md", Title: "Src", Content: "see [[notes/target]]"},
	})
	if got := slices.Collect(v.Backlinks(mustID(t, v, "notes/target.md"))); len(got) != 1 {
		t.Errorf("backlinks = %v, unresolved = %v", got, r.Unresolved)
	}
}

func TestSelfLink(t *testing.T) {
	v, _ := mustBuild(t, []Document{{Path: "me.md", Title: "Me", Content: "[[Me]]"}})
	me := mustID(t, v, "me.md")
	if got := slices.Collect(v.Backlinks(me)); !slices.Equal(got, []NoteID{me}) {
		t.Errorf("backlinks = %v", got)
	}
}

func TestForwardReferenceResolves(t *testing.T) {
	// The target is enumerated after the note referencing it.
	v, r := mustBuild(t, []Document{
		{Path: "first.md", Title: "First", Content: "[[Last]]"},
		{Path: "last.md", Title: "Last", Content: ""},
	})
	if !r.Clean() {
		t.Fatalf("report = %+v", r)
	}
	if count(v.Links(mustID(t, v, "first.md"))) != 1 {
		t.Error("forward reference not resolved")
	}
}

func TestDrainEmptiesVault(t *testing.T) {
	v, _ := mustBuild(t, sampleDocs)
	seen := map[string]bool{}
	for id, n := range v.Drain() {
		if id != NewNoteID(n.Path) {
			t.Errorf("drained id %s does not match path %q", id, n.Path)
		}
		seen[n.Path] = true
	}
	if len(seen) != 3 || !v.IsEmpty() {
		t.Errorf("drained %v, remaining %d", seen, v.Len())
	}
	if _, ok := v.IDOf("a.md"); ok {
		t.Error("index still resolves after drain")
	}
}

func TestValidateDetectsDanglingEdge(t *testing.T) {
	v, _ := mustBuild(t, sampleDocs)
	n, _ := v.Get(mustID(t, v, "a.md"))
	n.Adjacencies[NewNoteID("ghost.md")] = Connected
	if err := v.Validate(); !errors.Is(err, ErrInvariant) {
		t.Errorf("Validate = %v, want ErrInvariant", err)
	}
}

func TestConcurrentReaders(t *testing.T) {
	v, _ := mustBuild(t, sampleDocs, WithWorkers(4))
	b := mustID(t, v, "b.md")
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if len(slices.Collect(v.Backlinks(b))) != 2 {
				t.Error("unexpected backlink count")
			}
			_ = count(v.All())
		}()
	}
	wg.Wait()
}

func TestNoteIDTextRoundTrip(t *testing.T) {
	id := NewNoteID("a.md")
	parsed, err := ParseNoteID(id.String())
	if err != nil || parsed != id {
		t.Fatalf("ParseNoteID(%q) = %s, %v", id, parsed, err)
	}
	if _, err := ParseNoteID("not-an-id"); err == nil {
		t.Error("expected error for malformed id")
	}
}
