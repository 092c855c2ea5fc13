package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gmelton/docsight/internal/config"
	"github.com/gmelton/docsight/internal/ingest"
)

// Orchestrator manages the document-processing queue. Each queued job
// runs the page pipeline and then index ingestion.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	processor *Processor
	engine    *ingest.Engine
	log       *slog.Logger
	cfg       config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(cfg config.Config, processor *Processor, engine *ingest.Engine, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		processor: processor,
		engine:    engine,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.DocWorkers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	// Job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the orchestrator.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// process runs the full pipeline for one job: page processing with
// bounded concurrency, then the ingestion phase. The uploaded file is
// removed when the job finishes, whatever the outcome.
func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "source_id", job.SourceID)
	defer os.Remove(job.FilePath())

	job.SetStatus(StatusProcessing, "processing pages")

	records, numPages, err := ProcessDocument(ctx, o.processor, job.FilePath(), job.SourceID, o.cfg.PageConcurrency, log)
	if err != nil {
		log.Error("document processing failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "processing")
		return
	}

	visuals := 0
	for _, rec := range records {
		visuals += len(rec.Visuals)
	}
	job.SetPages(numPages, len(records), visuals)

	if len(records) == 0 {
		job.AddError("no pages survived processing")
		job.SetStatus(StatusFailed, "processing")
		return
	}

	job.SetStatus(StatusIngesting, "ingesting chunks")

	summary, err := o.engine.Ingest(ctx, records)
	job.SetIngestion(summary.ChunksSubmitted, summary.ChunksIngested, summary.BatchesFailed)
	if err != nil {
		log.Error("ingestion failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "ingesting")
		return
	}

	log.Info("ingestion complete",
		"pages", len(records),
		"visuals", visuals,
		"chunks_submitted", summary.ChunksSubmitted,
		"chunks_ingested", summary.ChunksIngested,
		"batches_failed", summary.BatchesFailed,
	)

	job.SetStatus(finalStatus(numPages, len(records), summary.BatchesFailed), "done")
}

// finalStatus reports partial whenever a page or a batch was lost, so a
// job never claims completion while data is missing from the index.
func finalStatus(numPages, pagesSurvived, batchesFailed int) JobStatus {
	if batchesFailed > 0 || pagesSurvived < numPages {
		return StatusPartial
	}
	return StatusCompleted
}
