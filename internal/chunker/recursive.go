// Package chunker splits extracted document text into overlapping windows.
package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Recursive splits text on the coarsest separator that keeps pieces under the
// size limit, then merges neighbouring pieces into windows that share up to
// overlap characters. Lengths are counted in runes.
type Recursive struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// NewRecursive creates a splitter. Non-positive size falls back to 1800,
// overlap is clamped to [0, size).
func NewRecursive(size, overlap int, separators ...string) *Recursive {
	if size <= 0 {
		size = 1800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Recursive{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(separators),
		),
	}
}

// Chunk returns the windows of text in document order. Blank text yields nil.
func (r *Recursive) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts, err := r.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
