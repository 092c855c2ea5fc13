package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/gmelton/docsight/internal/document"
	"github.com/gmelton/docsight/internal/index"
)

// Indexer is the slice of the index service the engine needs.
type Indexer interface {
	ResetCollection(ctx context.Context) error
	Upsert(ctx context.Context, chunks []index.Chunk) error
}

// Config controls batching and retry behavior.
type Config struct {
	Split      SplitConfig
	BatchSize  int
	MaxRetries int
	// BatchesPerSecond paces upserts to stay under external rate limits.
	// Applied between every batch, including successful ones.
	BatchesPerSecond float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Split:            DefaultSplitConfig(),
		BatchSize:        50,
		MaxRetries:       5,
		BatchesPerSecond: 1,
	}
}

// Summary reports what ingestion actually achieved. A failed batch does
// not abort the run, so callers must compare ingested against submitted.
type Summary struct {
	ChunksSubmitted int `json:"chunks_submitted"`
	ChunksIngested  int `json:"chunks_ingested"`
	BatchesFailed   int `json:"batches_failed"`
}

// Engine splits page records into overlapping chunks and upserts them
// into the index in retry-protected batches. The batch loop is strictly
// sequential as deliberate self-throttling.
type Engine struct {
	indexer Indexer
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger

	// backoff is swappable so tests don't sleep through real delays.
	backoff func(attempt int) time.Duration
}

func NewEngine(indexer Indexer, cfg Config, log *slog.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BatchesPerSecond <= 0 {
		cfg.BatchesPerSecond = 1
	}
	return &Engine{
		indexer: indexer,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.BatchesPerSecond), 1),
		log:     log,
		backoff: backoff,
	}
}

// Ingest resets the collection and inserts all chunks derived from the
// page records. The reset plus bulk insert form one logical phase:
// concurrent queries against the same collection during ingestion are
// undefined. A batch that exhausts its retries is logged, counted in the
// summary and skipped; any non-retryable upsert error aborts the run.
func (e *Engine) Ingest(ctx context.Context, pages []document.PageRecord) (Summary, error) {
	chunks := e.buildChunks(pages)
	summary := Summary{ChunksSubmitted: len(chunks)}

	if err := e.indexer.ResetCollection(ctx); err != nil {
		return summary, fmt.Errorf("reset collection: %w", err)
	}
	if len(chunks) == 0 {
		return summary, nil
	}

	total := (len(chunks) + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	e.log.Info("ingesting chunks", "chunks", len(chunks), "batches", total)

	for i := 0; i < len(chunks); i += e.cfg.BatchSize {
		end := min(i+e.cfg.BatchSize, len(chunks))
		batch := chunks[i:end]
		batchNum := i/e.cfg.BatchSize + 1

		if err := e.limiter.Wait(ctx); err != nil {
			return summary, err
		}

		if err := e.upsertWithRetry(ctx, batch); err != nil {
			var retryErr *index.RetryableError
			if !errors.As(err, &retryErr) {
				return summary, fmt.Errorf("batch %d/%d: %w", batchNum, total, err)
			}
			// Retry ceiling exhausted: lose this batch, keep going.
			e.log.Error("batch failed after retries", "batch", batchNum, "total", total, "error", err)
			summary.BatchesFailed++
			continue
		}

		summary.ChunksIngested += len(batch)
		e.log.Info("batch ingested", "batch", batchNum, "total", total)
	}

	return summary, nil
}

func (e *Engine) upsertWithRetry(ctx context.Context, batch []index.Chunk) error {
	var lastErr error
	for attempt := range e.cfg.MaxRetries {
		lastErr = e.indexer.Upsert(ctx, batch)
		if lastErr == nil {
			return nil
		}
		var retryErr *index.RetryableError
		if !errors.As(lastErr, &retryErr) {
			return lastErr
		}
		e.log.Warn("retryable upsert error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(e.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (e *Engine) buildChunks(pages []document.PageRecord) []index.Chunk {
	var chunks []index.Chunk
	for _, page := range pages {
		meta := index.Metadata{
			SourceID: page.SourceID,
			Page:     page.PageNumber,
			Visuals:  document.MarshalVisuals(page.Visuals),
		}
		for _, text := range Split(page.Text, e.cfg.Split) {
			chunks = append(chunks, index.Chunk{Text: text, Metadata: meta})
		}
	}
	return chunks
}

// backoff returns a duration for attempt n (0-indexed) with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
