package linker

import (
	"regexp"

	"github.com/gmelton/docsight/internal/document"
	"github.com/gmelton/docsight/internal/index"
)

// idPattern matches the identifier form emitted into page text by the
// page processor: "[Detected Table ID: a1b2c3d4] ...".
var idPattern = regexp.MustCompile(`ID:\s*([A-Za-z0-9-]+)\]`)

// Candidate is the query-time projection of a visual element. IsLinked is
// true when the element's id was textually co-cited in any retrieved
// chunk, signaling stronger relevance.
type Candidate struct {
	Element  document.VisualElement
	IsLinked bool
}

// CollectCandidates scans the retrieved chunks for co-cited identifiers
// and rebuilds the candidate list from each chunk's visual metadata, in
// retrieval order. Candidates are deliberately not deduplicated across
// chunks: selection indices are positional, and collapsing duplicates
// would silently shift which index a classifier answer resolves to.
func CollectCandidates(retrieved []index.Retrieved) []Candidate {
	cited := citedIDs(retrieved)

	var candidates []Candidate
	for _, chunk := range retrieved {
		for _, el := range document.UnmarshalVisuals(chunk.Metadata.Visuals) {
			candidates = append(candidates, Candidate{
				Element:  el,
				IsLinked: cited[el.ID],
			})
		}
	}
	return candidates
}

// citedIDs accumulates every identifier explicitly mentioned in the
// retrieved text. Linking is re-derived per query, never cached; the text
// index and the crop store stay independently evolvable.
func citedIDs(retrieved []index.Retrieved) map[string]bool {
	ids := make(map[string]bool)
	for _, chunk := range retrieved {
		for _, m := range idPattern.FindAllStringSubmatch(chunk.Text, -1) {
			ids[m[1]] = true
		}
	}
	return ids
}
