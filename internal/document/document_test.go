package document

import "testing"

func TestNormalizeType(t *testing.T) {
	cases := []struct {
		label string
		want  VisualType
	}{
		{"table", TypeTable},
		{"Data Table", TypeTable},
		{"chart", TypeChart},
		{"bar chart", TypeChart},
		{"line graph", TypeChart},
		{"scatter plot", TypeChart},
		{"figure", TypeFigure},
		{"photo", TypeFigure},
		{"", TypeFigure},
	}
	for _, c := range cases {
		if got := NormalizeType(c.label); got != c.want {
			t.Errorf("NormalizeType(%q) = %q, want %q", c.label, got, c.want)
		}
	}
}

func TestVisualsRoundTrip(t *testing.T) {
	visuals := []VisualElement{
		{ID: "a1b2c3d4", Type: TypeTable, Description: "revenue by quarter", Markdown: "| Q | Rev |\n|---|---|\n| 1 | 10 |", ImagePath: "crops/table/a1b2c3d4.png", Page: 3},
		{ID: "e5f6a7b8", Type: TypeChart, Description: "growth trend", ImagePath: "crops/chart/e5f6a7b8.png", Page: 3},
	}

	raw := MarshalVisuals(visuals)
	got := UnmarshalVisuals(raw)

	if len(got) != 2 {
		t.Fatalf("expected 2 visuals, got %d", len(got))
	}
	if got[0].ID != "a1b2c3d4" || got[0].Type != TypeTable {
		t.Errorf("first visual mangled: %+v", got[0])
	}
	if got[1].Markdown != "" {
		t.Errorf("expected empty markdown for chart, got %q", got[1].Markdown)
	}
}

func TestUnmarshalVisuals_MalformedIsEmpty(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"id":"x"}`} {
		if got := UnmarshalVisuals(raw); len(got) != 0 {
			t.Errorf("UnmarshalVisuals(%q) = %v, want empty", raw, got)
		}
	}
}

func TestMarshalVisuals_Empty(t *testing.T) {
	if got := MarshalVisuals(nil); got != "[]" {
		t.Errorf("MarshalVisuals(nil) = %q, want %q", got, "[]")
	}
}

func TestDisplayName(t *testing.T) {
	if TypeTable.DisplayName() != "Table" || TypeChart.DisplayName() != "Chart" || TypeFigure.DisplayName() != "Figure" {
		t.Error("unexpected display names")
	}
}
