/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave credit ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (environment variables as fallback)
  2. Initialize SQLite store
  3. Build the credit service and API handler
  4. Configure HTTP router
  5. Start the background sweeps
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr            HTTP listen address (default: :8080, env LEDGER_ADDR)
  -db              SQLite database path (default: leave.db, env LEDGER_DB)
                   Use ":memory:" for an in-memory database
  -sweep-interval  Background sweep check interval (default: 6h,
                   env LEDGER_SWEEP_INTERVAL)
  -rates           JSON rate table file mapping role to monthly credits
                   (optional, env LEDGER_RATES)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run with in-memory database and fast sweeps
  ./server -db=":memory:" -sweep-interval=1m

  # Custom accrual rates
  ./server -rates="./rates.json"

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background sweeps
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/credit"
	"github.com/warp/leave-ledger/store/sqlite"
)

func main() {
	// Flags
	addr := flag.String("addr", envOr("LEDGER_ADDR", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", envOr("LEDGER_DB", "leave.db"), "SQLite database path")
	sweepInterval := flag.Duration("sweep-interval", envDurationOr("LEDGER_SWEEP_INTERVAL", 6*time.Hour), "background sweep check interval")
	ratesPath := flag.String("rates", envOr("LEDGER_RATES", ""), "JSON rate table file (optional)")
	flag.Parse()

	// Accrual rates
	rates := credit.DefaultRateTable()
	if *ratesPath != "" {
		data, err := os.ReadFile(*ratesPath)
		if err != nil {
			log.Fatalf("Failed to read rate table: %v", err)
		}
		rates, err = credit.ParseRateTable(data)
		if err != nil {
			log.Fatalf("Failed to parse rate table: %v", err)
		}
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Domain service and API handler
	service := credit.NewService(store, rates, credit.SystemClock{})
	handler := api.NewHandler(store, service)

	// Create router
	router := api.NewRouter(handler)

	// Background sweeps
	scheduler := api.NewSweepScheduler(store, service)
	scheduler.CheckInterval = *sweepInterval
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Leave ledger starting on %s", *addr)
		log.Printf("📊 API available under %s/api", *addr)
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
	scheduler.Stop()

	log.Println("Server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
