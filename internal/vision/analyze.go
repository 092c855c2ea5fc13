package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Analysis is the refined result of the second vision pass over one
// cropped region: a free-text description and, for tables, a markdown
// reconstruction of the cell data.
type Analysis struct {
	Description string `json:"description"`
	Markdown    string `json:"markdown"`
}

const maxDescriptionLen = 1000

const analyzeBasePrompt = `You are analyzing a cropped region of a document page.

Return ONLY a JSON object of this exact shape:
{"description": "...", "markdown": ""}

"description": a precise description of what the region shows. For charts,
name the chart type, the axes, and summarize the key data points and trends.`

const analyzeTableAddendum = `
This region appears to contain a TABLE. In addition to the description, you
MUST reconstruct the full table in the "markdown" field using pipe-delimited
GitHub markdown syntax, including the header separator row. Preserve every
row and column exactly as shown.`

// AnalyzeRegion runs the refinement pass on one cropped region. The coarse
// label steers the prompt: suspected tables must come back with a markdown
// reconstruction. Returns an error on any failure; callers treat that as
// "skip this region", never as a page failure.
func AnalyzeRegion(ctx context.Context, model Model, crop []byte, coarseLabel string) (*Analysis, error) {
	prompt := analyzeBasePrompt
	if strings.Contains(strings.ToLower(coarseLabel), "table") {
		prompt += analyzeTableAddendum
	}
	prompt += "\n\nRespond with ONLY the JSON object, no other text."

	raw, err := model.Complete(ctx, prompt, [][]byte{crop})
	if err != nil {
		return nil, fmt.Errorf("analyze region: %w", err)
	}

	var a Analysis
	if err := json.Unmarshal([]byte(stripCodeBlock(raw)), &a); err != nil {
		return nil, fmt.Errorf("parse analysis: %w (raw: %s)", err, truncate(raw, 200))
	}

	a.Description = strings.TrimSpace(a.Description)
	if a.Description == "" {
		return nil, fmt.Errorf("analysis returned empty description")
	}
	if len(a.Description) > maxDescriptionLen {
		// Back off to a rune boundary so truncation never emits
		// invalid UTF-8.
		cut := maxDescriptionLen
		for cut > 0 && !utf8.RuneStart(a.Description[cut]) {
			cut--
		}
		a.Description = a.Description[:cut]
	}

	// Only keep markdown that actually parses as a table. Models sometimes
	// return prose or half-built tables in this field.
	a.Markdown = strings.TrimSpace(a.Markdown)
	if a.Markdown != "" && !IsMarkdownTable(a.Markdown) {
		a.Markdown = ""
	}

	return &a, nil
}
