package vault

import (
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Share folder ids are 6 hex characters: 24 bits of entropy, scoped to one
// namespace. That is small enough that collisions are a real (if remote)
// possibility across a long-lived namespace, which is why allocation
// redraws on collision instead of assuming uniqueness. The retry loop is
// bounded so id-space exhaustion fails loudly rather than spinning.
const (
	folderIDBytes    = 3
	maxAllocAttempts = 16
)

// ErrAllocExhausted is returned when every draw collided with an existing
// share folder.
var ErrAllocExhausted = errors.New("share folder allocation exhausted")

// AllocateFolder reserves a fresh share folder under owner's namespace and
// returns its id and path. Reservation is the directory creation itself:
// os.Mkdir fails on an existing id, so no caller ever observes an id without
// a backing directory, and two concurrent uploads can never share one.
func (v *Vault) AllocateFolder(owner string) (string, string, error) {
	ns, err := v.EnsureNamespace(owner)
	if err != nil {
		return "", "", err
	}

	for i := 0; i < maxAllocAttempts; i++ {
		id := newFolderID()
		dir := filepath.Join(ns, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", fmt.Errorf("create share folder: %w", err)
		}
	}
	return "", "", ErrAllocExhausted
}

// newFolderID draws a random folder id from the identifier space.
func newFolderID() string {
	b := make([]byte, folderIDBytes)
	if _, err := crand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
