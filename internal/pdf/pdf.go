package pdf

import (
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/go-fitz"
	pdflib "github.com/ledongthuc/pdf"
)

// RasterDPI is the fixed rendering resolution. Chosen high enough that
// crops of small table text stay legible for the second vision pass.
const RasterDPI = 216

// Document wraps one open handle to a source PDF. Handles are not safe
// for concurrent use; each page worker opens its own.
type Document struct {
	path string
	doc  *fitz.Document
}

// Open opens a PDF for rasterization and text extraction. An error here
// is the one fatal failure of document processing.
func Open(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &Document{path: path, doc: doc}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	return d.doc.NumPage()
}

// RenderPage rasterizes a page (1-based) at RasterDPI.
func (d *Document) RenderPage(page int) (image.Image, error) {
	img, err := d.doc.ImageDPI(page-1, RasterDPI)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return img, nil
}

// PageText extracts the plain text of a page (1-based). go-fitz is tried
// first; when it comes back empty the ledongthuc reader is used as a
// fallback, since the two handle damaged content streams differently.
func (d *Document) PageText(page int) (string, error) {
	text, err := d.doc.Text(page - 1)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	fallback, fbErr := extractPageTextFallback(d.path, page)
	if fbErr == nil && strings.TrimSpace(fallback) != "" {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("extract text page %d: %w", page, err)
	}
	return text, nil
}

// Close releases the underlying document handle.
func (d *Document) Close() {
	if d.doc != nil {
		d.doc.Close()
		d.doc = nil
	}
}

func extractPageTextFallback(path string, page int) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if page < 1 || page > reader.NumPage() {
		return "", fmt.Errorf("page %d out of range", page)
	}
	p := reader.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d is empty", page)
	}
	return p.GetPlainText(nil)
}
