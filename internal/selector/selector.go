package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gmelton/docsight/internal/linker"
	"github.com/gmelton/docsight/internal/vision"
)

// Intent classifies what the user wants from the candidate visuals.
type Intent string

const (
	// IntentSpecific means surface the single best match (at most two
	// when genuinely ambiguous).
	IntentSpecific Intent = "specific"
	// IntentAll means surface every candidate of the requested type.
	IntentAll Intent = "all"
)

// Selection is the ranked/filtered outcome of visual disambiguation.
type Selection struct {
	Intent          Intent `json:"intent"`
	RequestedType   string `json:"visual_type_requested"`
	SelectedIndices []int  `json:"selected_indices"`
	Reason          string `json:"reason"`
}

// maxSpecific caps how many visuals a "specific" answer may surface.
const maxSpecific = 2

const selectPromptHeader = `You are selecting which visual elements best answer a user's question.

The user asked: %q

Candidate visuals (indexed from 0):
%s
Decide the user's intent:
- "specific": the user wants the single most relevant visual. Select at most one index, or two only if genuinely ambiguous.
- "all": the user wants every visual of a given type (e.g. "show me all charts"). Select every candidate index whose type matches.

Candidates marked [LINKED] were cited directly in the retrieved text and are more likely relevant.

Return ONLY a JSON object of this exact shape:
{"intent": "specific", "visual_type_requested": "table|chart|figure|any", "selected_indices": [0], "reason": "..."}

Respond with ONLY the JSON object, no other text.`

// classifierResponse tolerates the shapes the classifier has produced
// over time: the current list field and a legacy single-index field.
type classifierResponse struct {
	Intent          string `json:"intent"`
	RequestedType   string `json:"visual_type_requested"`
	SelectedIndices []int  `json:"selected_indices"`
	SelectedIndex   *int   `json:"selected_index"`
	Reason          string `json:"reason"`
}

// Select asks the classifier which candidates to surface for the query.
// An empty candidate list short-circuits to nil without a classifier
// call. Call or parse failures degrade to an empty selection with a
// generic reason; they never propagate.
func Select(ctx context.Context, classifier vision.Model, query string, candidates []linker.Candidate, log *slog.Logger) *Selection {
	if len(candidates) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(selectPromptHeader, query, describeCandidates(candidates))

	raw, err := classifier.Complete(ctx, prompt, nil)
	if err != nil {
		log.Warn("visual selection call failed", "error", err)
		return failedSelection()
	}

	sel, err := decodeSelection(raw)
	if err != nil {
		log.Warn("visual selection returned unparseable output", "error", err)
		return failedSelection()
	}

	sanitize(sel, candidates)
	return sel
}

// decodeSelection parses a classifier response into the canonical
// Selection shape, handling the legacy single-index field when the list
// field is absent or empty. This is the only place response-shape drift
// is dealt with; everything downstream sees Selection.
func decodeSelection(raw string) (*Selection, error) {
	var resp classifierResponse
	if err := json.Unmarshal([]byte(stripCodeBlock(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse selection: %w", err)
	}

	indices := resp.SelectedIndices
	if len(indices) == 0 && resp.SelectedIndex != nil {
		indices = []int{*resp.SelectedIndex}
	}

	intent := Intent(resp.Intent)
	if intent != IntentAll {
		intent = IntentSpecific
	}

	requested := strings.ToLower(strings.TrimSpace(resp.RequestedType))
	if requested == "" {
		requested = "any"
	}

	return &Selection{
		Intent:          intent,
		RequestedType:   requested,
		SelectedIndices: indices,
		Reason:          resp.Reason,
	}, nil
}

// sanitize enforces the selection contract: out-of-range indices are
// dropped, "specific" answers cap at two indices, and a gallery request
// for a concrete type that came back empty falls back to every candidate
// of that type.
func sanitize(sel *Selection, candidates []linker.Candidate) {
	valid := sel.SelectedIndices[:0]
	for _, idx := range sel.SelectedIndices {
		if idx >= 0 && idx < len(candidates) {
			valid = append(valid, idx)
		}
	}
	sel.SelectedIndices = valid

	switch sel.Intent {
	case IntentSpecific:
		if len(sel.SelectedIndices) > maxSpecific {
			sel.SelectedIndices = sel.SelectedIndices[:maxSpecific]
		}
	case IntentAll:
		if len(sel.SelectedIndices) == 0 && sel.RequestedType != "any" {
			for i, c := range candidates {
				if string(c.Element.Type) == sel.RequestedType {
					sel.SelectedIndices = append(sel.SelectedIndices, i)
				}
			}
		}
	}
}

func failedSelection() *Selection {
	return &Selection{
		Intent:          IntentSpecific,
		RequestedType:   "any",
		SelectedIndices: []int{},
		Reason:          "visual selection unavailable",
	}
}

func describeCandidates(candidates []linker.Candidate) string {
	var sb strings.Builder
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("%d. type=%s", i, c.Element.Type))
		if c.IsLinked {
			sb.WriteString(" [LINKED]")
		}
		sb.WriteString(": ")
		sb.WriteString(truncate(c.Element.Description, 300))
		sb.WriteString("\n")
	}
	return sb.String()
}

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
