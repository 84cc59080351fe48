/*
main.go - Application entry point

PURPOSE:

	Initializes and starts the ledger engine HTTP server.
	Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
 1. Load configuration (.env file, environment, then flags)
 2. Initialize logger
 3. Initialize SQLite store
 4. Create API handler with the category tree cache
 5. Configure HTTP router
 6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):

	-env     Path to a .env file (default: ./.env when present)
	-port    HTTP server port
	-db      SQLite database path
	         Use ":memory:" for in-memory database

ENVIRONMENT:

	LEDGER_PORT, LEDGER_DB_PATH, LEDGER_LOG_LEVEL, LEDGER_LOG_PRETTY,
	LEDGER_TREE_CACHE_SIZE, LEDGER_TREE_CACHE_TTL, LEDGER_CORS_ORIGINS
	See config/config.go for defaults.

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop accepting new connections
	2. Wait for active requests to complete (30s timeout)
	3. Close database connection
	4. Exit

EXAMPLES:

	# Run with file database
	./server -db="./data/ledger.db"

	# Run with in-memory database and readable logs
	LEDGER_LOG_PRETTY=true ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/categories"
	"github.com/warp/ledger-engine/config"
	"github.com/warp/ledger-engine/logger"
	"github.com/warp/ledger-engine/store/sqlite"
)

func main() {
	// Flags
	envPath := flag.String("env", "", "Path to a .env file")
	port := flag.Int("port", 0, "HTTP server port (overrides LEDGER_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides LEDGER_DB_PATH)")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		bootLog := logger.New("info", true)
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	cache := categories.NewLRUCache(cfg.Cache.Size, cfg.Cache.TTL)
	handler := api.NewHandler(store, cache, log)

	// Create router
	router := api.NewRouter(handler, log, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("db", cfg.DBPath).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server stopped")
}
