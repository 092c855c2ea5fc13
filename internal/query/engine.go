package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gmelton/docsight/internal/document"
	"github.com/gmelton/docsight/internal/index"
	"github.com/gmelton/docsight/internal/linker"
	"github.com/gmelton/docsight/internal/selector"
	"github.com/gmelton/docsight/internal/vision"
)

// Retriever is the slice of the index service the engine needs.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]index.Retrieved, error)
}

const answerPrompt = `You are a helpful assistant. Use the following pieces of context to answer the question at the end.
The context may contain descriptions of images, tables, or charts.
IMPORTANT: The user CAN see the images from the context. The images are displayed directly to the user along with your response.
Therefore, you should refer to the images in your answer (e.g., "As shown in the image on page 3...", "The chart displays...").
Do NOT say "I cannot provide images" or "I cannot see the image". Instead, describe the content based on the provided description and explicitly state that the image is shown below/above.
Always cite the page number.

Context:
%s

Question: %s
Answer:`

// Engine runs retrieval, answer generation, visual linking and visual
// selection for a single question.
type Engine struct {
	retriever Retriever
	model     vision.Model
	k         int
	log       *slog.Logger
}

func NewEngine(retriever Retriever, model vision.Model, k int, log *slog.Logger) *Engine {
	if k <= 0 {
		k = 5
	}
	return &Engine{
		retriever: retriever,
		model:     model,
		k:         k,
		log:       log,
	}
}

// Source is one retrieved chunk, surfaced for citation.
type Source struct {
	Page    int     `json:"page"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Visuals bool    `json:"has_visuals"`
}

// Visual is one visual element prepared for display.
type Visual struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Markdown    string `json:"markdown,omitempty"`
	ImagePath   string `json:"image_path"`
	Page        int    `json:"page"`
	IsLinked    bool   `json:"is_linked"`
}

// VisualResult shapes the selection for presentation. Mode "specific"
// carries the primary visual first; "gallery" carries every selected
// visual; "none" carries nothing.
type VisualResult struct {
	Mode    string   `json:"mode"`
	Reason  string   `json:"reason,omitempty"`
	Visuals []Visual `json:"visuals"`
}

// Result is the full answer to one question.
type Result struct {
	Answer  string       `json:"answer"`
	Sources []Source     `json:"sources"`
	Visuals VisualResult `json:"visuals"`
}

// Ask answers a natural-language question over the ingested index:
// retrieve, generate the answer, then reconstruct and select the visual
// elements to surface alongside it. Selection failures degrade to an
// answer without visuals; only retrieval and answer-generation errors
// propagate.
func (e *Engine) Ask(ctx context.Context, question string) (*Result, error) {
	retrieved, err := e.retriever.Query(ctx, question, e.k)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	answer, err := e.generateAnswer(ctx, question, retrieved)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	candidates := linker.CollectCandidates(retrieved)
	sel := selector.Select(ctx, e.model, question, candidates, e.log)

	return &Result{
		Answer:  answer,
		Sources: buildSources(retrieved),
		Visuals: shapeVisuals(candidates, sel),
	}, nil
}

func (e *Engine) generateAnswer(ctx context.Context, question string, retrieved []index.Retrieved) (string, error) {
	var contextText strings.Builder
	for i, chunk := range retrieved {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(chunk.Text)
	}

	prompt := fmt.Sprintf(answerPrompt, contextText.String(), question)
	return e.model.Complete(ctx, prompt, nil)
}

// shapeVisuals implements the presentation contract: no candidates or no
// selection means no visuals; "specific" surfaces the first valid index
// (then any runner-up); "all" surfaces every selected index as a gallery.
func shapeVisuals(candidates []linker.Candidate, sel *selector.Selection) VisualResult {
	if sel == nil || len(sel.SelectedIndices) == 0 {
		reason := ""
		if sel != nil {
			reason = sel.Reason
		}
		return VisualResult{Mode: "none", Reason: reason, Visuals: []Visual{}}
	}

	mode := "specific"
	if sel.Intent == selector.IntentAll {
		mode = "gallery"
	}

	visuals := make([]Visual, 0, len(sel.SelectedIndices))
	for _, idx := range sel.SelectedIndices {
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		c := candidates[idx]
		visuals = append(visuals, Visual{
			ID:          c.Element.ID,
			Type:        string(c.Element.Type),
			Description: c.Element.Description,
			Markdown:    c.Element.Markdown,
			ImagePath:   c.Element.ImagePath,
			Page:        c.Element.Page,
			IsLinked:    c.IsLinked,
		})
	}
	if len(visuals) == 0 {
		return VisualResult{Mode: "none", Reason: sel.Reason, Visuals: []Visual{}}
	}

	return VisualResult{Mode: mode, Reason: sel.Reason, Visuals: visuals}
}

func buildSources(retrieved []index.Retrieved) []Source {
	sources := make([]Source, 0, len(retrieved))
	for _, chunk := range retrieved {
		sources = append(sources, Source{
			Page:    chunk.Metadata.Page,
			Text:    snippet(chunk.Text, 500),
			Score:   chunk.Score,
			Visuals: len(document.UnmarshalVisuals(chunk.Metadata.Visuals)) > 0,
		})
	}
	return sources
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
