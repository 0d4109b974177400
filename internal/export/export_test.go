package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/starford/notegraph/internal/vault"
)

func buildVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, _, err := vault.Build(context.Background(), []vault.Document{
		{Path: "a.md", Title: "A", Content: "links to [[B]]"},
		{Path: "b.md", Title: "B", Content: "no links"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestWriteIsStable(t *testing.T) {
	v := buildVault(t)
	var first, second bytes.Buffer
	if err := Write(&first, v); err != nil {
		t.Fatal(err)
	}
	if err := Write(&second, v); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Error("export output differs between runs")
	}
	out := first.String()
	b := vault.NewNoteID("b.md").String()
	if !strings.Contains(out, `"`+b+`": "connected"`) {
		t.Errorf("missing adjacency in output:\n%s", out)
	}
	if !strings.Contains(out, `"id_lookup"`) || !strings.Contains(out, `"b.md": "`+b+`"`) {
		t.Errorf("missing lookup in output:\n%s", out)
	}
}

func TestRoundTripRebuildsEqualVault(t *testing.T) {
	v := buildVault(t)
	var buf bytes.Buffer
	if err := Write(&buf, v); err != nil {
		t.Fatal(err)
	}
	doc, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	rebuilt, _, err := vault.NewBuilder(vault.WithSource(doc)).Build(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !v.Equal(rebuilt) {
		t.Error("rebuilt vault differs from exported vault")
	}
	for id, rec := range doc.Notes {
		n, ok := v.Get(id)
		if !ok || n.Path != rec.Path || len(n.Adjacencies) != len(rec.Adjacencies) {
			t.Errorf("record %s does not match note", id)
		}
	}
}

func TestRead_InvalidJSON(t *testing.T) {
	if _, err := Read(strings.NewReader("{not json")); err == nil {
		t.Error("expected decode error")
	}
}
