package executor

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent access to one resource class.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool admitting size concurrent holders.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Run executes fn while holding one pool slot. Acquisition respects the
// caller's deadline.
func (p *Pool) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire pool slot: %w", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Pools groups the bounded resource classes of the retrieval pipeline.
type Pools struct {
	Datasource *Pool
	Embedding  *Pool
	LLM        *Pool
}

// NewPools builds the three standard pools.
func NewPools(datasource, embedding, llm int) *Pools {
	return &Pools{
		Datasource: NewPool(datasource),
		Embedding:  NewPool(embedding),
		LLM:        NewPool(llm),
	}
}
