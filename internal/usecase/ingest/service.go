// Package ingest turns a document reference into the chunks and vectors the
// persistent store does not hold yet.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/metrics"
	"github.com/kailas-cloud/docqa/internal/vectorstore"
)

// Result is the unseen part of an ingested document.
// Transient is nil when the document brought nothing new.
type Result struct {
	NewChunks  []string
	NewVectors [][]float32
	Transient  *vectorstore.Store
}

// Empty reports whether nothing new was found.
func (r Result) Empty() bool { return len(r.NewChunks) == 0 }

// Service runs load, chunk, dedup and embed.
type Service struct {
	loader  Loader
	chunker Chunker
	embed   domain.Embedder
}

// New creates an ingestion service.
func New(loader Loader, chunker Chunker, embed domain.Embedder) *Service {
	return &Service{loader: loader, chunker: chunker, embed: embed}
}

// Ingest loads ref and returns the chunks index does not contain, embedded and
// loaded into a fresh transient store. Chunks repeated within the document
// are kept once. A blank ref is a no-op.
func (s *Service) Ingest(ctx context.Context, ref string, index Index) (Result, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Result{}, nil
	}
	log := logger.FromContext(ctx)
	start := time.Now()

	text, err := s.loader.Text(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("load document: %w", err)
	}

	chunks, err := s.chunker.Chunk(text)
	if err != nil {
		return Result{}, fmt.Errorf("chunk document: %w", err)
	}
	fresh := Unseen(chunks, index)
	metrics.IngestChunksTotal.WithLabelValues("new").Add(float64(len(fresh)))
	metrics.IngestChunksTotal.WithLabelValues("duplicate").Add(float64(len(chunks) - len(fresh)))

	if len(fresh) == 0 {
		log.Info("Document already indexed",
			zap.Int("chunks", len(chunks)),
			zap.Duration("duration", time.Since(start)),
		)
		return Result{}, nil
	}

	res, err := domain.EmbedAll(ctx, s.embed, fresh)
	if err != nil {
		return Result{}, fmt.Errorf("embed chunks: %w", err)
	}

	transient, err := vectorstore.NewTransient(index.Dimension())
	if err != nil {
		return Result{}, err
	}
	if err := transient.Add(fresh, res.Embeddings); err != nil {
		return Result{}, fmt.Errorf("build transient store: %w", err)
	}

	log.Info("Document ingested",
		zap.Int("chunks", len(chunks)),
		zap.Int("new_chunks", len(fresh)),
		zap.Int("total_tokens", res.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return Result{
		NewChunks:  fresh,
		NewVectors: res.Embeddings,
		Transient:  transient,
	}, nil
}

// Unseen returns chunks absent from index, in order, each text at most once.
func Unseen(chunks []string, index Index) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if index.Contains(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
