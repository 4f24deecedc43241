package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ssd-technologies/cubby/internal/vault"
)

// sanitizeFilename strips directory traversal, quotes, and CR/LF from a
// filename to prevent Content-Disposition header injection.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "download"
	}
	return name
}

// handleDownload handles GET /d/{owner}/{folder}/{name} — authorize the
// caller against the owner and stream the file.
//
// Access is strictly owner-only: a caller whose session identity differs
// from the owner in the link is denied even if they hold the full link.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	owner := r.PathValue("owner")
	folderID := r.PathValue("folder")
	name := r.PathValue("name")

	if user != owner {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	path, err := s.vault.ResolveFile(owner, folderID, name)
	if errors.Is(err, vault.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		log.Printf("download %s/%s/%s: %v", owner, folderID, name, err)
		writeError(w, http.StatusInternalServerError, "failed to resolve file")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Printf("download %s/%s/%s: open: %v", owner, folderID, name, err)
		writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		log.Printf("download %s/%s/%s: stat: %v", owner, folderID, name, err)
		writeError(w, http.StatusInternalServerError, "failed to stat file")
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, sanitizeFilename(name)))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
