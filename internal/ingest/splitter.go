package ingest

import (
	"strings"
	"unicode/utf8"
)

// SplitConfig controls text splitting.
type SplitConfig struct {
	ChunkSize    int // Target chunk size in characters.
	ChunkOverlap int // Overlap between consecutive chunks in characters.
}

// DefaultSplitConfig returns sensible defaults.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// Split breaks page text into overlapping chunks, preferring paragraph
// boundaries and falling back to sentence boundaries for oversized
// paragraphs.
func Split(text string, cfg SplitConfig) []string {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= cfg.ChunkSize {
		return []string{text}
	}

	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder

	for _, para := range paragraphs {
		// A single paragraph beyond the target gets split by sentences.
		if len(para) > cfg.ChunkSize {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			result = append(result, splitBySentences(para, cfg)...)
			continue
		}

		if current.Len()+len(para) > cfg.ChunkSize && current.Len() > 0 {
			result = append(result, current.String())
			overlap := overlapTail(current.String(), cfg.ChunkOverlap)
			current.Reset()
			if overlap != "" {
				current.WriteString(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func splitBySentences(text string, cfg SplitConfig) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder

	for _, sent := range sentences {
		// A run with no sentence breaks at all, like a large inlined
		// markdown table, gets a hard fixed-width split.
		if len(sent) > cfg.ChunkSize {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			result = append(result, splitFixed(sent, cfg.ChunkSize)...)
			continue
		}

		if current.Len()+len(sent) > cfg.ChunkSize && current.Len() > 0 {
			result = append(result, current.String())
			overlap := overlapTail(current.String(), cfg.ChunkOverlap)
			current.Reset()
			if overlap != "" {
				current.WriteString(overlap)
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}

// splitFixed cuts a boundary-less run into size-byte pieces, backing
// each cut off to a rune boundary.
func splitFixed(text string, size int) []string {
	var result []string
	for len(text) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		result = append(result, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		result = append(result, text)
	}
	return result
}

// overlapTail extracts roughly the last n bytes of text, aligned to a
// word boundary, for chunk overlap. The start is advanced to a rune
// boundary so the tail is never invalid UTF-8.
func overlapTail(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return ""
	}
	start := len(text) - n
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	tail := text[start:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx+1 < len(tail) {
		tail = tail[idx+1:]
	}
	return tail
}
