package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gmelton/docsight/internal/document"
	"github.com/gmelton/docsight/internal/pdf"
)

// ProcessDocument fans the page processor out across all pages of the
// document with bounded concurrency and returns the surviving page
// records in source page order, along with the document's true page
// count so callers can account for dropped pages. Pages that fail are
// dropped; only the initial document open is fatal.
func ProcessDocument(ctx context.Context, proc *Processor, docPath, sourceID string, concurrency int, log *slog.Logger) ([]document.PageRecord, int, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	// Open once just to count pages; each worker opens its own handle.
	doc, err := pdf.Open(docPath)
	if err != nil {
		return nil, 0, err
	}
	numPages := doc.NumPages()
	doc.Close()

	if numPages == 0 {
		return nil, 0, fmt.Errorf("document %s has no pages", sourceID)
	}

	records := processPages(numPages, concurrency, log, func(pageNum int) (document.PageRecord, error) {
		return proc.ProcessPage(ctx, docPath, sourceID, pageNum)
	})
	return records, numPages, nil
}

// processPages runs fn for every page (1-based) under a bounded
// semaphore, drops failed pages, and restores source order with a final
// stable sort. Completion order during processing is non-deterministic;
// ordering is enforced only at this collection boundary. A panicking
// page is converted to a page failure, never a process crash.
func processPages(numPages, concurrency int, log *slog.Logger, fn func(pageNum int) (document.PageRecord, error)) []document.PageRecord {
	type pageResult struct {
		record document.PageRecord
		err    error
		page   int
	}
	results := make(chan pageResult, numPages)
	sem := make(chan struct{}, concurrency)

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		sem <- struct{}{}
		go func(pageNum int) {
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					results <- pageResult{page: pageNum, err: fmt.Errorf("page %d panicked: %v", pageNum, r)}
				}
			}()
			record, err := fn(pageNum)
			results <- pageResult{record: record, err: err, page: pageNum}
		}(pageNum)
	}

	records := make([]document.PageRecord, 0, numPages)
	for range numPages {
		r := <-results
		if r.err != nil {
			log.Error("page failed, dropping", "page", r.page, "error", r.err)
			continue
		}
		records = append(records, r.record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PageNumber < records[j].PageNumber
	})

	return records
}
