package executor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arcware-ai/intentq/internal/domain"
)

// Strategy selects how the engine fans tasks out across adapters.
type Strategy string

const (
	// StrategyAll runs every task and returns every outcome.
	StrategyAll Strategy = "all"
	// StrategyFirstSuccess returns the first successful task and cancels the
	// rest; registration order breaks ties when several finish together.
	StrategyFirstSuccess Strategy = "first_success"
	// StrategyBestEffort runs every task under one overall deadline and
	// returns whatever completed in time.
	StrategyBestEffort Strategy = "best_effort"
)

// ParseStrategy validates a strategy name. Empty selects StrategyAll.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyAll, nil
	case StrategyAll, StrategyFirstSuccess, StrategyBestEffort:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, s)
	}
}

// Run executes tasks under the given strategy. Results keep task order for
// all and best_effort; first_success returns a single result.
func (e *Engine) Run(ctx context.Context, strategy Strategy, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}
	switch strategy {
	case StrategyFirstSuccess:
		return e.runFirstSuccess(ctx, tasks)
	case StrategyBestEffort:
		deadlineCtx, cancel := context.WithTimeout(ctx, e.deadline)
		defer cancel()
		return e.runAll(deadlineCtx, tasks)
	default:
		return e.runAll(ctx, tasks)
	}
}

func (e *Engine) runAll(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		g.Go(func() error {
			results[i] = e.execute(ctx, t)
			return nil
		})
	}
	g.Wait()
	return results
}

func (e *Engine) runFirstSuccess(ctx context.Context, tasks []Task) []Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(tasks))
	done := make(chan int, len(tasks))

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.execute(ctx, t)
			done <- i
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	finished := 0
	for i := range done {
		finished++
		if results[i].Err == nil {
			cancel()
			return []Result{results[i]}
		}
		if finished == len(tasks) {
			break
		}
	}
	// Everything failed; surface all failures in task order.
	wg.Wait()
	return results
}
