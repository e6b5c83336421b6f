package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/iMan-sources/sentiment-analysis/internal/analytics"
	"github.com/iMan-sources/sentiment-analysis/internal/app"
	"github.com/iMan-sources/sentiment-analysis/internal/config"
	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	"github.com/iMan-sources/sentiment-analysis/internal/hub"
	"github.com/iMan-sources/sentiment-analysis/internal/inference"
	"github.com/iMan-sources/sentiment-analysis/internal/ledger"
	"github.com/iMan-sources/sentiment-analysis/internal/logging"
	"github.com/iMan-sources/sentiment-analysis/internal/postgres"
	"github.com/iMan-sources/sentiment-analysis/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// seedBooks inserts a starter catalog when the books table is empty, so a
// fresh deployment has something to comment on.
func seedBooks(ctx context.Context, books *postgres.BookRepo) {
	existing, err := books.List(ctx)
	if err != nil {
		slog.Error("Failed to check book catalog", "error", err)
		return
	}
	if len(existing) > 0 {
		return
	}

	seed := []domain.Book{
		{Title: "The Go Programming Language", Author: "Alan A. A. Donovan", Price: 39.99},
		{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Price: 44.50},
		{Title: "Clean Architecture", Author: "Robert C. Martin", Price: 32.00},
		{Title: "The Pragmatic Programmer", Author: "David Thomas", Price: 42.99},
	}
	for i := range seed {
		if err := books.Insert(ctx, &seed[i]); err != nil {
			slog.Error("Failed to seed book", "title", seed[i].Title, "error", err)
			return
		}
	}
	slog.Info("Seeded book catalog", "count", len(seed))
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		h.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	// Construct repositories
	bookRepo := postgres.NewBookRepo(pool)
	commentRepo := postgres.NewCommentRepo(pool)
	predictionRepo := postgres.NewPredictionRepo(pool)
	snapshotRepo := postgres.NewSnapshotRepo(pool)

	seedBooks(context.Background(), bookRepo)

	engine := inference.NewEngine(cfg.ModelLexiconPath)
	if engine.Degraded() {
		slog.Warn("Sentiment engine running in fallback mode", "lexicon_path", cfg.ModelLexiconPath)
	}
	scoringPool := inference.NewPool(engine, cfg.InferenceWorkers)

	corrections := ledger.New(cfg.TrainingDataDir, predictionRepo, clock)
	aggregator := analytics.NewAggregator(predictionRepo, snapshotRepo, commentRepo, clock, cfg.MetricsWindow)

	h := hub.New(bookRepo, commentRepo, aggregator, corrections, clock, cfg.MaxWebSocketConnections)

	appSvc := app.NewService(bookRepo, commentRepo, predictionRepo, scoringPool, aggregator, aggregator, h, clock)

	srv := server.NewServer(cfg, appSvc, h, corrections, pool)

	done := runGracefulShutdown(srv, h)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
