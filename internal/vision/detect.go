package vision

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Detection is one raw bounding box from the first vision pass over a
// full page. BBox is [yMin, xMin, yMax, xMax] on a 0-1000 scale.
type Detection struct {
	Type string `json:"type"`
	BBox [4]int `json:"bbox"`
}

const detectPrompt = `Analyze this document page image and locate every table, chart and figure on it.

Return ONLY a JSON object of this exact shape:
{"visuals": [{"type": "table", "bbox": [yMin, xMin, yMax, xMax]}]}

Rules:
- "type" MUST be exactly one of: "table", "chart", "figure". No other labels.
- "bbox" coordinates are integers on a 0-1000 scale relative to the page, regardless of pixel size.
- Include decorative images and logos as "figure" only if they carry information.
- Return {"visuals": []} if the page has no visual elements.

Respond with ONLY the JSON object, no other text.`

type detectResponse struct {
	Visuals []Detection `json:"visuals"`
}

// DetectVisuals runs the layout-detection pass on a rendered page.
// Every failure mode — transport error, refusal, malformed JSON — yields
// zero detections: a page never fails ingestion because detection failed,
// it only loses its visuals.
func DetectVisuals(ctx context.Context, model Model, pageImage []byte, log *slog.Logger) []Detection {
	raw, err := model.Complete(ctx, detectPrompt, [][]byte{pageImage})
	if err != nil {
		log.Warn("visual detection failed", "error", err)
		return nil
	}

	var resp detectResponse
	if err := json.Unmarshal([]byte(stripCodeBlock(raw)), &resp); err != nil {
		log.Warn("visual detection returned unparseable output", "error", err, "raw", truncate(raw, 200))
		return nil
	}
	return resp.Visuals
}
