package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// IndexFileName is the manifest written into every completed share folder.
// It is written last, so its presence also marks the folder as complete.
const IndexFileName = "index.json"

// ErrEmptyBatch is returned when an upload contains no files.
var ErrEmptyBatch = errors.New("upload batch is empty")

// NamedStream is one file in an upload batch: the client-supplied name and
// the byte stream to persist.
type NamedStream struct {
	Name string
	Data io.Reader
}

// Entry describes one stored file in a share folder's index.
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Index is the manifest stored alongside the files of a batch.
type Index struct {
	Owner     string  `json:"owner"`
	FolderID  string  `json:"folder_id"`
	CreatedAt int64   `json:"created_at"`
	Files     []Entry `json:"files"`
}

// Ingest stores a batch of named streams in a freshly allocated share folder
// under owner's namespace and returns the folder id and index entries.
//
// Each stream lands under its client-supplied base name; the folder is fresh,
// so same-batch name collisions simply overwrite (last write wins). Files are
// staged under a dot-prefixed temp name and renamed into place once fully
// written, and the index is written only after every file, so concurrent
// listings and downloads never see a partial batch. Any failure, including a
// client disconnect surfacing as a stream read error, removes the entire
// folder before returning.
func (v *Vault) Ingest(owner string, batch []NamedStream) (string, []Entry, error) {
	if len(batch) == 0 {
		return "", nil, ErrEmptyBatch
	}

	id, dir, err := v.AllocateFolder(owner)
	if err != nil {
		return "", nil, err
	}

	entries := make([]Entry, 0, len(batch))
	stored := make(map[string]bool, len(batch))
	for _, f := range batch {
		name := storedName(f.Name)
		if err := writeStream(dir, name, f.Data); err != nil {
			os.RemoveAll(dir)
			return "", nil, fmt.Errorf("ingest %q: %w", name, err)
		}
		if !stored[name] {
			stored[name] = true
			entries = append(entries, Entry{
				Name: name,
				URL:  "/d/" + owner + "/" + id + "/" + name,
			})
		}
	}

	idx := Index{Owner: owner, FolderID: id, CreatedAt: time.Now().Unix(), Files: entries}
	if err := writeIndex(dir, idx); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("ingest index: %w", err)
	}

	return id, entries, nil
}

// storedName maps a client-supplied filename to the name used on disk:
// its final path element, with anything unusable replaced by a fallback.
func storedName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = strings.NewReplacer("\r", "", "\n", "").Replace(name)
	if !safeComponent(name) {
		return "upload"
	}
	return name
}

// writeStream copies r into dir/name via a dot-prefixed temp file plus
// rename, so a half-written file is never visible under its final name.
func writeStream(dir, name string, r io.Reader) error {
	tmp := filepath.Join(dir, ".part-"+name)
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write stream: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize file: %w", err)
	}
	return nil
}

// writeIndex marshals and stores the folder manifest, temp-and-rename like
// any other file.
func writeIndex(dir string, idx Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return writeStream(dir, IndexFileName, strings.NewReader(string(data)+"\n"))
}

// ReadIndex loads the manifest of a completed share folder.
func (v *Vault) ReadIndex(owner, folderID string) (*Index, error) {
	path, err := v.ResolveFile(owner, folderID, IndexFileName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return idx, nil
}
