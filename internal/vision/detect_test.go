package vision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

// fakeModel returns canned responses or errors, recording prompts.
type fakeModel struct {
	response string
	err      error
	prompts  []string
	images   [][][]byte
}

func (f *fakeModel) Complete(ctx context.Context, prompt string, images [][]byte) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.images = append(f.images, images)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDetectVisuals_ParsesDetections(t *testing.T) {
	model := &fakeModel{
		response: `{"visuals": [{"type": "table", "bbox": [100, 50, 400, 950]}, {"type": "chart", "bbox": [500, 0, 900, 500]}]}`,
	}

	detections := DetectVisuals(context.Background(), model, []byte("png"), discardLogger())

	if len(detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(detections))
	}
	if detections[0].Type != "table" {
		t.Errorf("expected table, got %q", detections[0].Type)
	}
	if detections[0].BBox != [4]int{100, 50, 400, 950} {
		t.Errorf("unexpected bbox: %v", detections[0].BBox)
	}
}

func TestDetectVisuals_CodeFencedResponse(t *testing.T) {
	model := &fakeModel{
		response: "```json\n{\"visuals\": [{\"type\": \"figure\", \"bbox\": [0, 0, 500, 500]}]}\n```",
	}

	detections := DetectVisuals(context.Background(), model, []byte("png"), discardLogger())
	if len(detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detections))
	}
}

func TestDetectVisuals_FailuresYieldZeroDetections(t *testing.T) {
	cases := []struct {
		name  string
		model *fakeModel
	}{
		{"call error", &fakeModel{err: fmt.Errorf("network down")}},
		{"rate limited", &fakeModel{err: &RetryableError{StatusCode: 429}}},
		{"refusal", &fakeModel{response: "I cannot analyze this image."}},
		{"malformed json", &fakeModel{response: `{"visuals": [{]}`}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			detections := DetectVisuals(context.Background(), c.model, []byte("png"), discardLogger())
			if len(detections) != 0 {
				t.Errorf("expected zero detections, got %d", len(detections))
			}
		})
	}
}

func TestDetectVisuals_EmptyPage(t *testing.T) {
	model := &fakeModel{response: `{"visuals": []}`}
	if got := DetectVisuals(context.Background(), model, []byte("png"), discardLogger()); len(got) != 0 {
		t.Errorf("expected no detections, got %d", len(got))
	}
}
