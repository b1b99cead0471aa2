package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/thermal.report/internal/api"
	"github.com/banshee-data/thermal.report/internal/config"
	"github.com/banshee-data/thermal.report/internal/jobs"
	"github.com/banshee-data/thermal.report/internal/thermal"
	"github.com/banshee-data/thermal.report/internal/version"
)

var (
	listen       = flag.String("listen", ":8080", "Listen address")
	dataDir      = flag.String("data", "data", "Directory for uploads, outputs, and summaries")
	dbFile       = flag.String("db", "", "Path to the jobs database (default <data>/jobs.db)")
	workers      = flag.Int("workers", 2, "Number of concurrent processing workers")
	processor    = flag.String("processor", "thermal-proc", "Processor binary to run jobs with")
	defaultsFile = flag.String("defaults", "", "Optional JSON file of processing defaults for uploads")
)

// Main
func main() {
	flag.Parse()

	log.Printf("thermald %s", version.String())

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	defaults := thermal.DefaultRunConfig()
	if *defaultsFile != "" {
		d, err := config.Load(*defaultsFile)
		if err != nil {
			log.Fatalf("Failed to load processing defaults: %v", err)
		}
		defaults = d.Apply(defaults)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := *dbFile
	if dbPath == "" {
		dbPath = filepath.Join(*dataDir, "jobs.db")
	}
	store, err := jobs.NewStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open jobs database: %v", err)
	}
	defer store.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := jobs.NewQueue(store, &jobs.ProcessorRunner{Binary: *processor}, *workers)
	if err := queue.Start(ctx); err != nil {
		log.Fatalf("Failed to start job queue: %v", err)
	}

	// wait for the worker pool to wind down with everything else
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Wait()
		log.Print("job queue stopped")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(store, queue, *dataDir, defaults).ServeMux()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("listening on %s (data=%s db=%s workers=%d)", *listen, *dataDir, dbPath, *workers)

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
