package health

import "context"

// CachePinger checks the embedding cache store.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// AdapterPinger checks one datasource adapter's connectivity.
type AdapterPinger interface {
	Name() string
	Ping(ctx context.Context) error
}
