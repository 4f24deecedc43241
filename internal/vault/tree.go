package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

// TreeNode is a derived, in-memory description of a file or directory,
// produced fresh from disk on every listing. File nodes carry the absolute
// storage path; directory nodes carry their children in lexical order.
type TreeNode struct {
	Name     string      `json:"name"`
	Dir      bool        `json:"dir"`
	Path     string      `json:"path,omitempty"`
	Size     int64       `json:"size,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// ListTree materializes the full tree under root. The caller is responsible
// for the root's existence (EnsureNamespace runs first on every request
// path); a missing root is reported as an error, not papered over.
//
// Dot-prefixed entries are in-flight upload state and are skipped. Entries
// that are neither regular files nor directories (symlinks included) are
// skipped too, so a link cycle on the storage medium cannot recurse.
func (v *Vault) ListTree(root string) (*TreeNode, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("list tree root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list tree root %q: not a directory", root)
	}

	node := &TreeNode{Name: filepath.Base(root), Dir: true}
	node.Children, err = listChildren(root)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func listChildren(dir string) ([]*TreeNode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	children := make([]*TreeNode, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == "" || name[0] == '.' {
			continue
		}
		path := filepath.Join(dir, name)
		switch {
		case e.IsDir():
			sub, err := listChildren(path)
			if err != nil {
				return nil, err
			}
			children = append(children, &TreeNode{Name: name, Dir: true, Children: sub})
		case e.Type().IsRegular():
			info, err := e.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %q: %w", path, err)
			}
			children = append(children, &TreeNode{Name: name, Path: path, Size: info.Size()})
		}
	}
	return children, nil
}
