package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gmelton/docsight/internal/pipeline"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s (only .pdf)", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	sourceID := r.FormValue("source_id")
	if sourceID == "" {
		sourceID = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	// The rasterizer needs a file on disk; stream the upload there.
	path, size, err := s.saveUpload(file, filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if size > s.cfg.MaxUploadBytes {
		os.Remove(path)
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		Filename:  filename,
		Status:    pipeline.StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetFilePath(path)

	if err := s.orchestrator.Submit(job); err != nil {
		os.Remove(path)
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":    job.ID,
		"source_id": job.SourceID,
		"status":    job.Status,
		"poll_url":  fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

func (s *Server) saveUpload(file io.Reader, filename string) (string, int64, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+"-"+filename)
	out, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	return path, size, nil
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
