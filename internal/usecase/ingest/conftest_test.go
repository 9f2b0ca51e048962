package ingest

import (
	"context"
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// --- Mocks ---

type mockLoader struct {
	text  string
	err   error
	calls int
}

func (m *mockLoader) Text(_ context.Context, _ string) (string, error) {
	m.calls++
	return m.text, m.err
}

// lineChunker splits on newlines so tests control chunk boundaries.
type lineChunker struct {
	err error
}

func (c lineChunker) Chunk(text string) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// lenEmbedder maps a text to a 2-d vector derived from its length.
type lenEmbedder struct {
	err     error
	batches [][]string
}

func (e *lenEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: vec(text), TotalTokens: 1}, nil
}

func (e *lenEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.batches = append(e.batches, append([]string(nil), texts...))
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vec(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func vec(text string) []float32 {
	return []float32{float32(len(text)), 1}
}
