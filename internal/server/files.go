package server

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/ssd-technologies/cubby/internal/vault"
)

// multipartFile pairs a form-file header with its opened stream so the whole
// batch can be closed after ingest.
type multipartFile struct {
	header *multipart.FileHeader
	file   multipart.File
}

func (m *multipartFile) open() error {
	f, err := m.header.Open()
	if err != nil {
		return err
	}
	m.file = f
	return nil
}

func closeAll(files []*multipartFile) {
	for _, m := range files {
		if m.file != nil {
			m.file.Close()
		}
	}
}

// handleTree handles GET /api/tree — list the caller's namespace as a tree.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	// First authenticated access may predate any upload; the namespace is
	// created lazily here so listing an empty account succeeds.
	ns, err := s.vault.EnsureNamespace(user)
	if err != nil {
		log.Printf("tree %q: ensure namespace: %v", user, err)
		writeError(w, http.StatusInternalServerError, "failed to prepare namespace")
		return
	}

	tree, err := s.vault.ListTree(ns)
	if err != nil {
		log.Printf("tree %q: %v", user, err)
		writeError(w, http.StatusInternalServerError, "failed to list namespace")
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// handleUpload handles POST /api/upload — ingest a multipart batch into a
// fresh share folder.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	var headers []*multipartFile
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["file"] {
			headers = append(headers, &multipartFile{header: fh})
		}
	}

	batch := make([]vault.NamedStream, 0, len(headers))
	for _, mf := range headers {
		if err := mf.open(); err != nil {
			closeAll(headers)
			writeError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		batch = append(batch, vault.NamedStream{Name: mf.header.Filename, Data: mf.file})
	}
	defer closeAll(headers)

	folderID, entries, err := s.vault.Ingest(user, batch)
	switch {
	case errors.Is(err, vault.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "upload requires at least one file")
		return
	case errors.Is(err, vault.ErrAllocExhausted):
		log.Printf("upload %q: %v", user, err)
		writeError(w, http.StatusInternalServerError, "could not allocate a share folder")
		return
	case err != nil:
		log.Printf("upload %q: %v", user, err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	s.hub.publish(user, uploadEvent{Type: "upload", FolderID: folderID, Files: names})

	writeJSON(w, http.StatusCreated, map[string]any{
		"folder_id": folderID,
		"files":     entries,
	})
}
