package pipeline

import (
	"testing"
	"time"
)

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusProcessing, "processing pages"},
		{StatusIngesting, "ingesting chunks"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_SetStatusFailed(t *testing.T) {
	job := &Job{
		ID:        "test-fail",
		Status:    StatusProcessing,
		UpdatedAt: time.Now(),
	}
	job.SetStatus(StatusFailed, "document unreadable")
	if job.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, job.Status)
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("page 3 failed")
	job.AddError("page 7 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "page 3 failed" {
		t.Errorf("expected first error %q, got %q", "page 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_SetPages(t *testing.T) {
	job := &Job{ID: "pages-test", UpdatedAt: time.Now()}
	job.SetPages(10, 8, 5)

	snap := job.Snapshot()
	if snap.Progress.TotalPages != 10 {
		t.Errorf("expected 10 total pages, got %d", snap.Progress.TotalPages)
	}
	if snap.Progress.PagesProcessed != 8 {
		t.Errorf("expected 8 processed pages, got %d", snap.Progress.PagesProcessed)
	}
	if snap.Progress.PagesFailed != 2 {
		t.Errorf("expected 2 failed pages, got %d", snap.Progress.PagesFailed)
	}
	if snap.Progress.VisualsFound != 5 {
		t.Errorf("expected 5 visuals, got %d", snap.Progress.VisualsFound)
	}
}

func TestJob_SetIngestion(t *testing.T) {
	job := &Job{ID: "ingest-test", UpdatedAt: time.Now()}
	job.SetIngestion(100, 95, 1)

	snap := job.Snapshot()
	if snap.Progress.ChunksSubmitted != 100 {
		t.Errorf("expected 100 submitted chunks, got %d", snap.Progress.ChunksSubmitted)
	}
	if snap.Progress.ChunksIngested != 95 {
		t.Errorf("expected 95 ingested chunks, got %d", snap.Progress.ChunksIngested)
	}
	if snap.Progress.BatchesFailed != 1 {
		t.Errorf("expected 1 failed batch, got %d", snap.Progress.BatchesFailed)
	}
}

func TestJob_FilePath(t *testing.T) {
	job := &Job{ID: "path-test"}
	job.SetFilePath("/tmp/uploads/abc.pdf")
	if got := job.FilePath(); got != "/tmp/uploads/abc.pdf" {
		t.Errorf("expected file path round-trip, got %q", got)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
