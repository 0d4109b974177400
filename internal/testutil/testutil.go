// Package testutil provides shared test helpers for setting up vault
// directories, databases and services.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp(t.TempDir(), "notegraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory holding files (path to
// content) and returns its storage provider.
func TestVault(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

// TestService builds a service over files and runs the first rebuild.
func TestService(t *testing.T, files map[string]string) (*noteservice.Service, *storage.FS) {
	t.Helper()
	store := TestVault(t, files)
	svc := noteservice.NewService(store, TestDB(t), nil)
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return svc, store
}

// SampleFiles is a small vault used across package tests.
func SampleFiles() map[string]string {
	return map[string]string{
		"a.md":       "# A\n\nlinks to [[B]] and [[Missing]]",
		"b.md":       "# B\n\nno links",
		"sub/c.md":   "---\ntitle: C\n---\nsee [[a]] and [[B|bee]]",
		"dup/one.md": "# Same\n",
		"dup/two.md": "# Same\n",
	}
}
