package server

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ssd-technologies/cubby/internal/vault"
)

// StartWorkers launches all background goroutines. Call with a cancellable
// context for graceful shutdown.
func (s *Server) StartWorkers(ctx context.Context) {
	go s.runSessionSweep(ctx)
	go s.runFolderSweep(ctx)
}

// --- Session Sweep Worker ---

// runSessionSweep periodically prunes expired sessions (every 5 minutes).
func (s *Server) runSessionSweep(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Minute):
			n, err := s.db.DeleteExpiredSessions(time.Now().Unix())
			if err != nil {
				log.Printf("[worker] sweep sessions: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[worker] pruned %d expired sessions", n)
			}
		}
	}
}

// --- Abandoned Folder Sweep Worker ---

// abandonedAfter is how old a share folder without an index manifest must be
// before the sweeper considers its upload dead. Ingest removes its own
// folder on failure; this catches the cases where the process died first.
const abandonedAfter = time.Hour

// runFolderSweep periodically removes abandoned share folders (every 10 minutes).
func (s *Server) runFolderSweep(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Minute):
			n := s.sweepAbandonedFolders(time.Now().Add(-abandonedAfter))
			if n > 0 {
				log.Printf("[worker] removed %d abandoned share folders", n)
			}
		}
	}
}

// sweepAbandonedFolders removes share folders created before cutoff that
// never received their index manifest. Returns the number removed.
func (s *Server) sweepAbandonedFolders(cutoff time.Time) int {
	namespaces, err := os.ReadDir(s.vault.Root())
	if err != nil {
		log.Printf("[worker] read vault root: %v", err)
		return 0
	}

	removed := 0
	for _, ns := range namespaces {
		if !ns.IsDir() {
			continue
		}
		nsPath := filepath.Join(s.vault.Root(), ns.Name())
		folders, err := os.ReadDir(nsPath)
		if err != nil {
			log.Printf("[worker] read namespace %q: %v", ns.Name(), err)
			continue
		}
		for _, f := range folders {
			if !f.IsDir() {
				continue
			}
			dir := filepath.Join(nsPath, f.Name())
			if _, err := os.Stat(filepath.Join(dir, vault.IndexFileName)); err == nil {
				continue // complete folder
			}
			info, err := f.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("[worker] remove abandoned folder %q: %v", dir, err)
				continue
			}
			removed++
		}
	}
	return removed
}
