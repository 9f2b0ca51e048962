package health

import "context"

// StoreChecker checks that the persistent vector store is readable.
type StoreChecker interface {
	Check() error
}

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
