/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave management statistics server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Wire the change hook to the statistics refresher
  4. Run one synchronous refresh so the first read never cold-starts
  5. Configure HTTP router
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the refresh worker
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - stats/refresher.go: Refresh worker
*/
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

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/auth"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/stats"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Statistics pipeline: store changes -> refresher -> holder -> endpoint
	holder := stats.NewHolder()
	aggregator := stats.NewAggregator(store, stats.Options{
		TopRequestersLimit: cfg.Stats.TopRequestersLimit,
		StalePendingAfter:  cfg.StalePendingAfter(),
	})
	refresher := stats.NewRefresher(aggregator, holder)
	store.OnChange(func(string) { refresher.Schedule() })

	// First computation; a failure here is logged and the endpoint reports
	// the cold-start condition until a later refresh succeeds.
	if err := refresher.RefreshNow(context.Background()); err != nil {
		log.Printf("Warning: initial statistics refresh failed: %v", err)
	}

	refresher.Start()
	defer refresher.Stop()

	// Router
	handler := api.NewHandler(store)
	statsHandler := api.NewStatsHandler(holder, refresher)
	verifier := auth.NewStoreVerifier(store)
	router := api.NewRouter(handler, statsHandler, verifier, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.RateLimit.Requests,
		RateWindow:     cfg.RateWindow(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
