package health

import "context"

// Pinger checks a backing store's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// VectorStateReader reports the vector store lifecycle state by name.
type VectorStateReader interface {
	StateName() string
	Degraded() bool
	Size() int
}

// EntryCounter counts search index entries that belong in the vector store.
type EntryCounter interface {
	CountIndexable(ctx context.Context) (int, error)
}
