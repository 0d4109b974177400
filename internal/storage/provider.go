// Package storage reads notes from, and writes generated files to, a directory tree.
package storage

import "github.com/starford/notegraph/internal/vault"

// Provider is the interface for vault file operations.
type Provider interface {
	vault.Source
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Root returns the absolute directory the provider is rooted at.
	Root() string
}

var _ Provider = (*FS)(nil)
