package answer

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/lock"
	"github.com/kailas-cloud/docqa/internal/usecase/ingest"
	"github.com/kailas-cloud/docqa/internal/usecase/retrieval"
)

// Store is the persistent vector store.
type Store interface {
	retrieval.Searcher
	ingest.Index
	Add(texts []string, vectors [][]float32) error
	Persist() error
	// Reload picks up artifacts persisted by another writer. Called under the store lock.
	Reload() error
	Location() string
}

// Ingester finds the unseen content of a document.
type Ingester interface {
	Ingest(ctx context.Context, ref string, index ingest.Index) (ingest.Result, error)
}

// Fuser builds the retrieval context for a question embedding.
type Fuser interface {
	Fuse(query []float32, persistent, transient retrieval.Searcher) (retrieval.Context, error)
}

// Assembler renders a prompt.
type Assembler interface {
	Build(c retrieval.Context, question string) (string, error)
}

// Generator answers a prompt, retrying transient failures itself.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Locker serializes writers of one store location.
type Locker interface {
	Lock(ctx context.Context, key string) (lock.Unlock, error)
}
