package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Vision model (OpenAI-compatible)
	VisionBaseURL string
	VisionAPIKey  string
	VisionModel   string

	// Vector index service
	IndexURL        string
	IndexAPIKey     string
	IndexCollection string

	// Concurrency
	PageConcurrency int // Bounded page workers per document.
	DocWorkers      int // Concurrent document jobs.
	MaxQueueSize    int

	// Storage
	CropDir        string
	UploadDir      string
	MaxUploadBytes int64

	// Chunking and ingestion
	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	MaxRetries       int
	BatchesPerSecond float64

	// Retrieval
	RetrievalK int

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("DOCSIGHT_API_KEY"),

		VisionBaseURL: envOr("VISION_BASE_URL", "https://api.openai.com"),
		VisionAPIKey:  os.Getenv("OPENAI_API_KEY"),
		VisionModel:   envOr("VISION_MODEL", "gpt-4o"),

		IndexURL:        envOr("INDEX_URL", "http://localhost:8000"),
		IndexAPIKey:     os.Getenv("INDEX_API_KEY"),
		IndexCollection: envOr("INDEX_COLLECTION", "docsight"),

		PageConcurrency: envInt("PAGE_CONCURRENCY", 4),
		DocWorkers:      envInt("DOC_WORKERS", 2),
		MaxQueueSize:    envInt("MAX_QUEUE_SIZE", 20),

		CropDir:        envOr("CROP_DIR", "./data/crops"),
		UploadDir:      envOr("UPLOAD_DIR", "./data/uploads"),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		ChunkSize:        envInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     envInt("CHUNK_OVERLAP", 200),
		BatchSize:        envInt("BATCH_SIZE", 50),
		MaxRetries:       envInt("MAX_RETRIES", 5),
		BatchesPerSecond: envFloat("BATCHES_PER_SECOND", 1),

		RetrievalK: envInt("RETRIEVAL_K", 5),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.PageConcurrency <= 0 {
		cfg.PageConcurrency = 4
	}
	if cfg.DocWorkers <= 0 {
		cfg.DocWorkers = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BatchesPerSecond <= 0 {
		cfg.BatchesPerSecond = 1
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = 5
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCSIGHT_API_KEY is required")
	}
	if c.VisionAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
