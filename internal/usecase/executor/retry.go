package executor

import (
	"context"
	"errors"
	"time"

	"github.com/arcware-ai/intentq/internal/domain"
)

// RetrySettings configures transient-failure retries for one adapter.
type RetrySettings struct {
	MaxRetries         int           // retries after the first attempt
	Delay              time.Duration // base delay between attempts
	ExponentialBackoff bool          // double the delay each retry
}

// withRetry runs fn up to 1+MaxRetries times. Context cancellation and open
// circuits are terminal and never retried.
func withRetry(ctx context.Context, cfg RetrySettings, fn func(context.Context) error) error {
	delay := cfg.Delay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if cfg.ExponentialBackoff {
			delay *= 2
		}
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrCircuitOpen) {
		return false
	}
	return true
}
