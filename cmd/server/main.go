package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gmelton/docsight/internal/api"
	"github.com/gmelton/docsight/internal/config"
	"github.com/gmelton/docsight/internal/index"
	"github.com/gmelton/docsight/internal/ingest"
	"github.com/gmelton/docsight/internal/pipeline"
	"github.com/gmelton/docsight/internal/query"
	"github.com/gmelton/docsight/internal/vision"
)

func main() {
	// Best-effort: a missing .env just means env vars come from elsewhere.
	godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	model := vision.NewClient(cfg.VisionBaseURL, cfg.VisionAPIKey, cfg.VisionModel)
	idx := index.NewClient(cfg.IndexURL, cfg.IndexAPIKey, cfg.IndexCollection)

	// Initialize pipeline.
	processor := pipeline.NewProcessor(model, cfg.CropDir, log)
	engine := ingest.NewEngine(idx, ingest.Config{
		Split: ingest.SplitConfig{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
		BatchSize:        cfg.BatchSize,
		MaxRetries:       cfg.MaxRetries,
		BatchesPerSecond: cfg.BatchesPerSecond,
	}, log)
	orch := pipeline.NewOrchestrator(cfg, processor, engine, log)
	orch.Start(ctx)

	// Initialize query engine and HTTP server.
	queryEngine := query.NewEngine(idx, model, cfg.RetrievalK, log)
	srv := api.NewServer(orch, queryEngine, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		model.Close()
		idx.Close()
	}()

	log.Info("starting docsight", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
