package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ssd-technologies/cubby/internal/config"
	"github.com/ssd-technologies/cubby/internal/server"
	"github.com/ssd-technologies/cubby/internal/storage"
	"github.com/ssd-technologies/cubby/internal/vault"
)

func main() {
	// A .env file is optional; real environment variables still win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CUBBY_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := storage.NewDB(cfg.Server.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	v, err := vault.New(cfg.Server.DataDir)
	if err != nil {
		log.Fatalf("Failed to open vault: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.New(db, v, server.Options{
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		SessionTTL:     time.Duration(cfg.Session.TTLHours) * time.Hour,
	})
	srv.StartWorkers(ctx)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	fmt.Printf("Cubby running on http://localhost:%s\n", cfg.Server.Port)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
