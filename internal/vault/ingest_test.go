package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// errReader simulates a client disconnect mid-stream.
type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestIngest_EmptyBatch(t *testing.T) {
	v := testVault(t)

	if _, _, err := v.Ingest("alice", nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("error = %v, want ErrEmptyBatch", err)
	}
	if _, _, err := v.Ingest("alice", []NamedStream{}); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("error = %v, want ErrEmptyBatch", err)
	}
}

func TestIngest_StoresFilesAndIndex(t *testing.T) {
	v := testVault(t)

	batch := []NamedStream{
		{Name: "a.txt", Data: strings.NewReader("alpha")},
		{Name: "b.txt", Data: strings.NewReader("beta")},
	}
	id, entries, err := v.Ingest("alice", batch)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].URL != "/d/alice/"+id+"/a.txt" {
		t.Errorf("entry URL = %q, want %q", entries[0].URL, "/d/alice/"+id+"/a.txt")
	}

	dir := filepath.Join(v.Root(), "alice", id)
	for name, want := range map[string]string{"a.txt": "alpha", "b.txt": "beta"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %q: %v", name, err)
		}
		if string(data) != want {
			t.Errorf("%q content = %q, want %q", name, data, want)
		}
	}

	idx, err := v.ReadIndex("alice", id)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if idx.Owner != "alice" || idx.FolderID != id {
		t.Errorf("index owner/id = %q/%q, want alice/%s", idx.Owner, idx.FolderID, id)
	}
	if len(idx.Files) != 2 {
		t.Errorf("index files = %d, want 2", len(idx.Files))
	}
}

func TestIngest_SameBatchCollisionLastWriteWins(t *testing.T) {
	v := testVault(t)

	batch := []NamedStream{
		{Name: "a.txt", Data: strings.NewReader("first")},
		{Name: "a.txt", Data: strings.NewReader("second")},
	}
	id, entries, err := v.Ingest("alice", batch)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (deduplicated)", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(v.Root(), "alice", id, "a.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q (last write wins)", data, "second")
	}
}

func TestIngest_SanitizesClientPaths(t *testing.T) {
	v := testVault(t)

	batch := []NamedStream{
		{Name: "../../../etc/passwd", Data: strings.NewReader("x")},
		{Name: `C:\Users\victim\doc.pdf`, Data: strings.NewReader("y")},
	}
	id, entries, err := v.Ingest("alice", batch)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if entries[0].Name != "passwd" {
		t.Errorf("entry 0 name = %q, want %q", entries[0].Name, "passwd")
	}
	if entries[1].Name != "doc.pdf" {
		t.Errorf("entry 1 name = %q, want %q", entries[1].Name, "doc.pdf")
	}
	// Nothing escaped the share folder.
	dir := filepath.Join(v.Root(), "alice", id)
	items, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(items) != 3 { // two files + index
		t.Errorf("folder entries = %d, want 3", len(items))
	}
}

func TestIngest_FailureRemovesFolder(t *testing.T) {
	v := testVault(t)

	batch := []NamedStream{
		{Name: "ok.txt", Data: strings.NewReader("fine")},
		{Name: "broken.txt", Data: errReader{}},
	}
	if _, _, err := v.Ingest("alice", batch); err == nil {
		t.Fatal("Ingest with failing stream should error")
	}

	// The namespace must hold no leftover folder, partial or otherwise.
	items, err := os.ReadDir(filepath.Join(v.Root(), "alice"))
	if err != nil {
		t.Fatalf("read namespace: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("namespace has %d leftover entries after failed ingest", len(items))
	}
}

func TestStoredName(t *testing.T) {
	cases := map[string]string{
		"a.txt":          "a.txt",
		"dir/inner.txt":  "inner.txt",
		"..":             "upload",
		".hidden":        "upload",
		"":               "upload",
		"evil\r\n.txt":   "evil.txt",
		`win\style.docx`: "style.docx",
	}
	for in, want := range cases {
		if got := storedName(in); got != want {
			t.Errorf("storedName(%q) = %q, want %q", in, got, want)
		}
	}
}
