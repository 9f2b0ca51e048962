package ingest

import "context"

// Loader fetches a document and extracts its text.
type Loader interface {
	Text(ctx context.Context, ref string) (string, error)
}

// Chunker splits text into overlapping windows.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// Index answers "already indexed?" for the persistent store.
type Index interface {
	Contains(text string) bool
	Dimension() int
}
