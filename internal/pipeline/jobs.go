package pipeline

import (
	"sync"
	"time"
)

// JobStatus represents the state of a document-processing job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusIngesting  JobStatus = "ingesting"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of a single document through page processing and
// index ingestion.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	SourceID string `json:"source_id"`
	Filename string `json:"filename"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	filePath string
	errors   []string
}

// Progress tracks processing and ingestion progress. Ingested vs
// submitted chunk counts surface best-effort batch loss to callers.
type Progress struct {
	TotalPages      int      `json:"total_pages"`
	PagesProcessed  int      `json:"pages_processed"`
	PagesFailed     int      `json:"pages_failed"`
	VisualsFound    int      `json:"visuals_found"`
	ChunksSubmitted int      `json:"chunks_submitted"`
	ChunksIngested  int      `json:"chunks_ingested"`
	BatchesFailed   int      `json:"batches_failed"`
	Errors          []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetPages records page-processing outcomes.
func (j *Job) SetPages(total, processed, visuals int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalPages = total
	j.Progress.PagesProcessed = processed
	j.Progress.PagesFailed = total - processed
	j.Progress.VisualsFound = visuals
	j.UpdatedAt = time.Now()
}

// SetIngestion records the ingestion summary.
func (j *Job) SetIngestion(submitted, ingested, batchesFailed int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksSubmitted = submitted
	j.Progress.ChunksIngested = ingested
	j.Progress.BatchesFailed = batchesFailed
	j.UpdatedAt = time.Now()
}

// SetFilePath sets the path of the uploaded document on disk.
func (j *Job) SetFilePath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.filePath = path
}

// FilePath returns the path of the uploaded document.
func (j *Job) FilePath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.filePath
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	SourceID string    `json:"source_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:       j.ID,
		SourceID: j.SourceID,
		Filename: j.Filename,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: p,
	}
}
