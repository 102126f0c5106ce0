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

	"github.com/tilevault/tilevault-go/internal/api"
	"github.com/tilevault/tilevault-go/internal/core"
	"github.com/tilevault/tilevault-go/internal/jobs"
	"github.com/tilevault/tilevault-go/internal/store"
)

var version = "dev"

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize the core application components
	app, err := core.New(version)
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	// Start the maintenance job scheduler
	jobs.StartJobs(app)

	// Watch the cache database for external changes (other processes, rsync
	// restores) and refresh store statistics when they happen.
	watcher := store.NewWatcher(app.Config().Database.Path, func() {
		log.Println("Cache database changed on disk, refreshing store stats...")
		if err := app.JobManager().RunJob("store-stats", app); err != nil {
			log.Printf("Warning: stats refresh could not start: %v", err)
		}
	})
	if err := watcher.Start(); err != nil {
		log.Printf("Warning: could not watch cache database: %v", err)
	}
	defer watcher.Stop()

	// Run the websocket hub
	go app.WsHub().Run()

	// Setup the API server
	server := api.NewServer(app)
	addr := fmt.Sprintf(":%d", app.Config().Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		log.Printf("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// A running background download must tear down cleanly: clear its
	// notification, release the keep-alive lease, flush recovery state.
	if job := app.Supervisor().Current(); job != nil {
		job.Cancel()
		select {
		case <-job.Done():
		case <-time.After(10 * time.Second):
			log.Println("Warning: background download did not stop in time")
		}
	}

	// Create a context with a timeout to allow existing connections to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempt a graceful shutdown.
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
