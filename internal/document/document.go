package document

import (
	"encoding/json"
	"strings"
)

// VisualType classifies a detected visual element.
type VisualType string

const (
	TypeTable  VisualType = "table"
	TypeChart  VisualType = "chart"
	TypeFigure VisualType = "figure"
)

// VisualElement is one detected table, chart or figure that survived
// extraction and analysis. The short ID is the only link between the
// element and any mention of it inside page text.
type VisualElement struct {
	ID          string     `json:"id"`
	Type        VisualType `json:"type"`
	Description string     `json:"description"`
	Markdown    string     `json:"markdown,omitempty"`
	ImagePath   string     `json:"path"`
	Page        int        `json:"page"`
}

// PageRecord is the processed form of one source page: the extracted text
// with annotated visual references appended, plus the visual elements
// found on the page. Immutable once emitted by the pipeline.
type PageRecord struct {
	SourceID   string
	PageNumber int
	Text       string
	Visuals    []VisualElement
}

// MarshalVisuals serializes a visual-element list for chunk metadata.
// Paths, ids and descriptions only — raw image bytes never enter the index.
func MarshalVisuals(visuals []VisualElement) string {
	if len(visuals) == 0 {
		return "[]"
	}
	b, err := json.Marshal(visuals)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// UnmarshalVisuals decodes the visual-element metadata attached to a
// retrieved chunk. Malformed metadata yields an empty list, not an error:
// a chunk without readable visuals is still a usable text chunk.
func UnmarshalVisuals(raw string) []VisualElement {
	if raw == "" {
		return nil
	}
	var visuals []VisualElement
	if err := json.Unmarshal([]byte(raw), &visuals); err != nil {
		return nil
	}
	return visuals
}

// NormalizeType maps a coarse model label onto exactly one VisualType
// using substring containment, so minor label drift ("bar chart",
// "line graph", "data table") still lands in the right bucket.
func NormalizeType(label string) VisualType {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "table"):
		return TypeTable
	case strings.Contains(l, "chart"), strings.Contains(l, "graph"), strings.Contains(l, "plot"):
		return TypeChart
	default:
		return TypeFigure
	}
}

// DisplayName returns the capitalized form used in annotated references.
func (t VisualType) DisplayName() string {
	switch t {
	case TypeTable:
		return "Table"
	case TypeChart:
		return "Chart"
	default:
		return "Figure"
	}
}
