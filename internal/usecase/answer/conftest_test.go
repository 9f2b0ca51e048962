package answer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/lock"
	"github.com/kailas-cloud/docqa/internal/usecase/ingest"
	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
	"github.com/kailas-cloud/docqa/internal/vectorstore"
)

// --- Mocks ---

// countingStore wraps a real store and counts writes.
type countingStore struct {
	*vectorstore.Store
	mu       sync.Mutex
	adds     int
	persists int
}

func (s *countingStore) Add(texts []string, vectors [][]float32) error {
	s.mu.Lock()
	s.adds++
	s.mu.Unlock()
	return s.Store.Add(texts, vectors)
}

func (s *countingStore) Persist() error {
	s.mu.Lock()
	s.persists++
	s.mu.Unlock()
	return s.Store.Persist()
}

type mockLoader struct {
	text string
}

func (m *mockLoader) Text(_ context.Context, _ string) (string, error) { return m.text, nil }

type lineChunker struct{}

func (lineChunker) Chunk(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

type countingIngester struct {
	inner Ingester
	mu    sync.Mutex
	calls int
}

func (c *countingIngester) Ingest(ctx context.Context, ref string, index ingest.Index) (ingest.Result, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Ingest(ctx, ref, index)
}

// lenEmbedder maps a text to a 2-d vector derived from its length.
type lenEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *lenEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}}, nil
}

// echoAssembler makes the prompt the question itself plus its context.
type echoAssembler struct{}

func (echoAssembler) Build(c retrieval.Context, question string) (string, error) {
	return question + "|" + strings.Join(c.New, ",") + "|" + strings.Join(c.Existing, ","), nil
}

type mockGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	fn      func(ctx context.Context, call int, prompt string) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, call, prompt)
	}
	q, _, _ := strings.Cut(prompt, "|")
	return "1. answer to " + q, nil
}

func (m *mockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockLocker struct {
	mu    sync.Mutex
	keys  []string
	err   error
	inner *lock.Keyed
}

func (m *mockLocker) Lock(ctx context.Context, key string) (lock.Unlock, error) {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.inner.Lock(ctx, key)
}

// --- Fixture ---

type fixture struct {
	store    *countingStore
	ingester *countingIngester
	embedder *lenEmbedder
	gen      *mockGenerator
	locker   *mockLocker
}

func newFixture(store *vectorstore.Store, docText string) *fixture {
	emb := &lenEmbedder{}
	return &fixture{
		store:    &countingStore{Store: store},
		ingester: &countingIngester{inner: ingest.New(&mockLoader{text: docText}, lineChunker{}, emb)},
		embedder: emb,
		gen:      &mockGenerator{},
		locker:   &mockLocker{inner: lock.NewKeyed()},
	}
}

func (f *fixture) service(opts Options) *Service {
	return New(Deps{
		Store:     f.store,
		Ingester:  f.ingester,
		Embedder:  f.embedder,
		Fuser:     retrieval.NewFuser(retrieval.DefaultBudgets()),
		Assembler: echoAssembler{},
		Generator: f.gen,
		Locker:    f.locker,
	}, opts)
}

func fastOptions() Options {
	return Options{MaxAttempts: 3, InitialRetryDelay: time.Millisecond, MaxConcurrency: 4, AllowUpdate: true}
}
