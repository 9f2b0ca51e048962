package retrieval

// Searcher is the read side of a vector store.
type Searcher interface {
	Search(query []float32, k int) ([]string, error)
	Len() int
}
