package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gmelton/docsight/internal/document"
	"github.com/gmelton/docsight/internal/index"
)

// fakeIndexer records calls and fails selected batches.
type fakeIndexer struct {
	resets    int
	upserts   [][]index.Chunk
	failCalls map[int]error // 0-based upsert call -> error to return every time
}

func (f *fakeIndexer) ResetCollection(ctx context.Context) error {
	f.resets++
	return nil
}

func (f *fakeIndexer) Upsert(ctx context.Context, chunks []index.Chunk) error {
	call := len(f.upserts)
	f.upserts = append(f.upserts, chunks)
	if err, ok := f.failCalls[call]; ok {
		return err
	}
	return nil
}

func testEngine(idx Indexer, batchSize, maxRetries int) *Engine {
	e := NewEngine(idx, Config{
		Split:            SplitConfig{ChunkSize: 100, ChunkOverlap: 20},
		BatchSize:        batchSize,
		MaxRetries:       maxRetries,
		BatchesPerSecond: 1000, // effectively no pacing in tests
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.backoff = func(int) time.Duration { return time.Millisecond }
	return e
}

func pagesWithChunks(n int) []document.PageRecord {
	// Each page yields exactly one chunk (short text).
	pages := make([]document.PageRecord, 0, n)
	for i := range n {
		pages = append(pages, document.PageRecord{
			SourceID:   "doc",
			PageNumber: i + 1,
			Text:       fmt.Sprintf("page %d content", i+1),
		})
	}
	return pages
}

func TestIngest_BatchCountIsCeilOfChunksOverBatchSize(t *testing.T) {
	idx := &fakeIndexer{}
	e := testEngine(idx, 4, 3)

	summary, err := e.Ingest(context.Background(), pagesWithChunks(10))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if idx.resets != 1 {
		t.Errorf("expected 1 reset, got %d", idx.resets)
	}
	// ceil(10/4) = 3 upsert calls.
	if len(idx.upserts) != 3 {
		t.Errorf("expected 3 upsert calls, got %d", len(idx.upserts))
	}
	if summary.ChunksSubmitted != 10 || summary.ChunksIngested != 10 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestIngest_FailedBatchDoesNotBlockSubsequentBatches(t *testing.T) {
	retryable := &index.RetryableError{StatusCode: 429, Message: "rate limited"}
	idx := &fakeIndexer{failCalls: map[int]error{}}
	e := testEngine(idx, 2, 2)

	// Batch 1 (calls 1..2 after the first batch's single call) always
	// fails with a retryable error; with MaxRetries=2 that is calls at
	// positions 1 and 2. Batch 0 and batch 2 succeed.
	idx.failCalls[1] = retryable
	idx.failCalls[2] = retryable

	summary, err := e.Ingest(context.Background(), pagesWithChunks(6))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if summary.BatchesFailed != 1 {
		t.Errorf("expected 1 failed batch, got %d", summary.BatchesFailed)
	}
	if summary.ChunksIngested != 4 {
		t.Errorf("expected 4 ingested chunks, got %d", summary.ChunksIngested)
	}
	if summary.ChunksSubmitted != 6 {
		t.Errorf("expected 6 submitted chunks, got %d", summary.ChunksSubmitted)
	}
}

func TestIngest_NonRetryableErrorPropagates(t *testing.T) {
	idx := &fakeIndexer{failCalls: map[int]error{0: fmt.Errorf("schema mismatch")}}
	e := testEngine(idx, 2, 3)

	_, err := e.Ingest(context.Background(), pagesWithChunks(4))
	if err == nil {
		t.Fatal("expected error for non-retryable failure")
	}
	if !strings.Contains(err.Error(), "schema mismatch") {
		t.Errorf("unexpected error: %v", err)
	}
	// No retries for non-retryable errors: exactly one upsert attempt.
	if len(idx.upserts) != 1 {
		t.Errorf("expected 1 upsert attempt, got %d", len(idx.upserts))
	}
}

func TestIngest_RetryableErrorRecovers(t *testing.T) {
	retryable := &index.RetryableError{StatusCode: 503, Message: "overloaded"}
	idx := &fakeIndexer{failCalls: map[int]error{0: retryable}}
	e := testEngine(idx, 10, 3)

	summary, err := e.Ingest(context.Background(), pagesWithChunks(3))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.ChunksIngested != 3 {
		t.Errorf("expected recovery after retry, summary: %+v", summary)
	}
	if len(idx.upserts) != 2 {
		t.Errorf("expected 2 attempts (1 failure + 1 success), got %d", len(idx.upserts))
	}
}

func TestIngest_EmptyPagesStillResets(t *testing.T) {
	idx := &fakeIndexer{}
	e := testEngine(idx, 10, 3)

	summary, err := e.Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if idx.resets != 1 {
		t.Errorf("expected reset even with no chunks, got %d", idx.resets)
	}
	if summary.ChunksSubmitted != 0 || len(idx.upserts) != 0 {
		t.Errorf("unexpected activity: %+v, %d upserts", summary, len(idx.upserts))
	}
}

func TestIngest_ChunkMetadataCarriesVisuals(t *testing.T) {
	idx := &fakeIndexer{}
	e := testEngine(idx, 10, 3)

	pages := []document.PageRecord{{
		SourceID:   "report",
		PageNumber: 2,
		Text:       "some text",
		Visuals: []document.VisualElement{
			{ID: "ab12cd34", Type: document.TypeChart, Description: "trend", ImagePath: "crops/chart/ab12cd34.png", Page: 2},
		},
	}}

	if _, err := e.Ingest(context.Background(), pages); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(idx.upserts) != 1 || len(idx.upserts[0]) != 1 {
		t.Fatalf("expected a single chunk upsert")
	}
	meta := idx.upserts[0][0].Metadata
	if meta.SourceID != "report" || meta.Page != 2 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	visuals := document.UnmarshalVisuals(meta.Visuals)
	if len(visuals) != 1 || visuals[0].ID != "ab12cd34" {
		t.Errorf("visual metadata lost: %q", meta.Visuals)
	}
}
