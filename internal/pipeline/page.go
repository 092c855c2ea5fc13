package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/gmelton/docsight/internal/document"
	"github.com/gmelton/docsight/internal/pdf"
	"github.com/gmelton/docsight/internal/region"
	"github.com/gmelton/docsight/internal/vision"
)

// Processor turns one raw page into a PageRecord: extracted text plus
// detected, cropped and analyzed visual elements with annotated
// references stitched into the page text.
type Processor struct {
	model   vision.Model
	cropDir string
	log     *slog.Logger
}

func NewProcessor(model vision.Model, cropDir string, log *slog.Logger) *Processor {
	return &Processor{
		model:   model,
		cropDir: cropDir,
		log:     log,
	}
}

// ProcessPage processes a single page (1-based) of the document at
// docPath. It opens its own document handle so no parsing state is
// shared across page workers.
func (p *Processor) ProcessPage(ctx context.Context, docPath, sourceID string, pageNum int) (document.PageRecord, error) {
	log := p.log.With("source_id", sourceID, "page", pageNum)

	doc, err := pdf.Open(docPath)
	if err != nil {
		return document.PageRecord{}, err
	}
	defer doc.Close()

	text, err := doc.PageText(pageNum)
	if err != nil {
		// A page without extractable text can still carry visuals.
		log.Warn("text extraction failed", "error", err)
		text = ""
	}

	img, err := doc.RenderPage(pageNum)
	if err != nil {
		return document.PageRecord{}, err
	}

	pageImage, err := encodePNG(img)
	if err != nil {
		return document.PageRecord{}, fmt.Errorf("encode page %d: %w", pageNum, err)
	}

	detections := vision.DetectVisuals(ctx, p.model, pageImage, log)

	var sb strings.Builder
	sb.WriteString(text)

	var visuals []document.VisualElement
	for _, det := range detections {
		el, ok := p.processRegion(ctx, img, det, pageNum, log)
		if !ok {
			continue
		}
		visuals = append(visuals, el)
		appendReference(&sb, el)
	}

	log.Info("page processed", "detections", len(detections), "visuals", len(visuals))

	return document.PageRecord{
		SourceID:   sourceID,
		PageNumber: pageNum,
		Text:       sb.String(),
		Visuals:    visuals,
	}, nil
}

// processRegion runs crop -> analyze -> persist for one detection.
// Every failure is region-local: the region is skipped, the page survives.
func (p *Processor) processRegion(ctx context.Context, img image.Image, det vision.Detection, pageNum int, log *slog.Logger) (document.VisualElement, bool) {
	crop, err := region.Crop(img, det.BBox)
	if err != nil {
		if errors.Is(err, region.ErrDegenerateBox) {
			log.Debug("skipping degenerate box", "bbox", det.BBox)
		} else {
			log.Warn("crop failed", "bbox", det.BBox, "error", err)
		}
		return document.VisualElement{}, false
	}

	analysis, err := vision.AnalyzeRegion(ctx, p.model, crop, det.Type)
	if err != nil {
		log.Warn("region analysis failed", "error", err)
		return document.VisualElement{}, false
	}

	id := newVisualID()
	vtype := document.NormalizeType(det.Type)

	imagePath, err := p.saveCrop(vtype, id, crop)
	if err != nil {
		log.Warn("crop persist failed", "error", err)
		return document.VisualElement{}, false
	}

	el := document.VisualElement{
		ID:          id,
		Type:        vtype,
		Description: analysis.Description,
		ImagePath:   imagePath,
		Page:        pageNum,
	}
	if vtype == document.TypeTable {
		el.Markdown = analysis.Markdown
	}
	return el, true
}

// saveCrop writes the crop under a type-partitioned directory tree.
func (p *Processor) saveCrop(vtype document.VisualType, id string, crop []byte) (string, error) {
	dir := filepath.Join(p.cropDir, string(vtype))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crop dir: %w", err)
	}
	path := filepath.Join(dir, id+".png")
	if err := os.WriteFile(path, crop, 0o644); err != nil {
		return "", fmt.Errorf("write crop: %w", err)
	}
	return path, nil
}

// appendReference stitches the annotated visual reference into the page
// text. The id inside this reference is the only link between the text
// index and the persisted crop, so the format must stay in sync with the
// linker's scan pattern. Table markdown goes inline after the description
// so text-only retrieval still sees the cell data.
func appendReference(sb *strings.Builder, el document.VisualElement) {
	fmt.Fprintf(sb, "\n\n[Detected %s ID: %s] (Page %d): %s", el.Type.DisplayName(), el.ID, el.Page, el.Description)
	if el.Markdown != "" {
		sb.WriteString("\n")
		sb.WriteString(el.Markdown)
	}
}

// newVisualID returns a short opaque identifier, unique within a
// document-processing run.
func newVisualID() string {
	return uuid.NewString()[:8]
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
