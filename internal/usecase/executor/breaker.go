package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/metrics"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures one adapter's circuit breaker.
type BreakerSettings struct {
	FailureThreshold   int           // consecutive failures that open the circuit
	RecoveryTimeout    time.Duration // base open duration before probing
	SuccessThreshold   int           // consecutive probe successes that close it
	MaxRecoveryTimeout time.Duration // backoff ceiling
	ExponentialBackoff bool          // double the open duration on failed probes
}

// Breaker is a per-adapter circuit breaker. State changes happen only under
// the mutex; outcomes are recorded after the guarded call returns, so no I/O
// ever runs under the lock.
type Breaker struct {
	name string
	cfg  BreakerSettings
	now  func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	cooldown  time.Duration
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerSettings) *Breaker {
	b := &Breaker{
		name:     name,
		cfg:      cfg,
		now:      time.Now,
		cooldown: cfg.RecoveryTimeout,
	}
	metrics.BreakerState.WithLabelValues(name).Set(float64(StateClosed))
	return b
}

// WithClock replaces the breaker's clock. Used by tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow reports whether a call may proceed. An open breaker whose cooldown
// has elapsed moves to half-open and admits the probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	elapsed := b.now().Sub(b.openedAt)
	if elapsed < b.cooldown {
		return fmt.Errorf("%w: adapter %q retries in %s",
			domain.ErrCircuitOpen, b.name, (b.cooldown - elapsed).Round(time.Millisecond))
	}
	b.transition(StateHalfOpen)
	b.successes = 0
	return nil
}

// RecordSuccess notes a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.failures = 0
			b.cooldown = b.cfg.RecoveryTimeout
		}
	}
}

// RecordFailure notes a failed call. A failed half-open probe reopens the
// circuit immediately, doubling the cooldown when backoff is enabled.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open(false)
		}
	case StateHalfOpen:
		b.open(b.cfg.ExponentialBackoff)
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// open must be called with the mutex held.
func (b *Breaker) open(backoff bool) {
	if backoff {
		b.cooldown *= 2
		if b.cfg.MaxRecoveryTimeout > 0 && b.cooldown > b.cfg.MaxRecoveryTimeout {
			b.cooldown = b.cfg.MaxRecoveryTimeout
		}
	}
	b.openedAt = b.now()
	b.transition(StateOpen)
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	metrics.BreakerState.WithLabelValues(b.name).Set(float64(to))
	metrics.BreakerTransitionsTotal.WithLabelValues(b.name, from.String(), to.String()).Inc()
}
