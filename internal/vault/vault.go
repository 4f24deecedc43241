// Package vault manages the on-disk storage layout: one namespace directory
// per identity, each holding uniquely named share folders that contain one
// upload batch plus its generated index manifest.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when a resolved path has no backing file.
	ErrNotFound = errors.New("not found in vault")
	// ErrInvalidName is returned for path components that could escape a
	// namespace or touch internal (dot-prefixed) entries.
	ErrInvalidName = errors.New("invalid name")
)

// Vault is rooted at a single data directory. All namespaces live directly
// under the root; the vault never writes outside it.
type Vault struct {
	root string
}

// New creates a Vault rooted at dir, creating the directory if needed.
func New(dir string) (*Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create vault root: %w", err)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute path of the vault's data directory.
func (v *Vault) Root() string {
	return v.root
}

// EnsureNamespace makes sure the namespace directory for username exists and
// returns its path. Creating an existing namespace is a no-op.
func (v *Vault) EnsureNamespace(username string) (string, error) {
	if !safeComponent(username) {
		return "", fmt.Errorf("ensure namespace: %w", ErrInvalidName)
	}
	dir := filepath.Join(v.root, username)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure namespace %q: %w", username, err)
	}
	return dir, nil
}

// ResolveFile maps an (owner, folder, filename) triple to the backing
// storage path, or ErrNotFound if no regular file exists there. It performs
// no authorization; callers gate access before resolving.
func (v *Vault) ResolveFile(owner, folderID, name string) (string, error) {
	for _, part := range []string{owner, folderID, name} {
		if !safeComponent(part) {
			return "", fmt.Errorf("resolve file: %w", ErrNotFound)
		}
	}
	path := filepath.Join(v.root, owner, folderID, name)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("resolve file: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("resolve file: %w", ErrNotFound)
	}
	return path, nil
}

// safeComponent reports whether s is usable as a single path segment.
// Dot-prefixed names are reserved for in-flight upload state.
func safeComponent(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}
