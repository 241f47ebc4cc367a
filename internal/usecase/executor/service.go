// Package executor runs translated queries against datasource adapters with
// circuit breaking, bounded retries, and concurrent execution strategies.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/template"
	"github.com/arcware-ai/intentq/internal/logger"
	"github.com/arcware-ai/intentq/internal/metrics"
	"github.com/arcware-ai/intentq/internal/translator"
)

// Adapter binds one configured datasource to its connection and fault
// tolerance settings.
type Adapter struct {
	name     string
	backend  template.Backend
	domain   string
	conn     Connection
	breaker  *Breaker
	retry    RetrySettings
	timeout  time.Duration
	isolated bool // route calls through the datasource pool
}

// AdapterSettings configures one adapter. ProcessIsolation exists for
// compatibility with configs written for the process-based runtime; both
// isolation flags route execution through the bounded datasource pool.
type AdapterSettings struct {
	Name             string
	Backend          template.Backend
	Domain           string
	OperationTimeout time.Duration
	Breaker          BreakerSettings
	Retry            RetrySettings
	ThreadIsolation  bool
	ProcessIsolation bool
}

// NewAdapter creates an adapter over a connection.
func NewAdapter(conn Connection, cfg AdapterSettings) *Adapter {
	return &Adapter{
		name:     cfg.Name,
		backend:  cfg.Backend,
		domain:   cfg.Domain,
		conn:     conn,
		breaker:  NewBreaker(cfg.Name, cfg.Breaker),
		retry:    cfg.Retry,
		timeout:  cfg.OperationTimeout,
		isolated: cfg.ThreadIsolation || cfg.ProcessIsolation,
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return a.name }

// Backend returns the adapter's backend family.
func (a *Adapter) Backend() template.Backend { return a.backend }

// Domain returns the knowledge domain the adapter serves.
func (a *Adapter) Domain() string { return a.domain }

// Breaker exposes the adapter's circuit breaker for health reporting.
func (a *Adapter) Breaker() *Breaker { return a.breaker }

// Isolated reports whether execution is routed through the datasource pool.
func (a *Adapter) Isolated() bool { return a.isolated }

// Task is one translated query bound to its adapter.
type Task struct {
	Adapter    *Adapter
	Query      translator.Query
	TemplateID string
	Similarity float64
}

// Result is the outcome of one task.
type Result struct {
	TemplateID string
	Adapter    string
	Backend    template.Backend
	Rows       backend.Rows
	Duration   time.Duration
	Similarity float64
	Err        error
}

// Engine executes tasks across the configured adapters.
type Engine struct {
	adapters []*Adapter // registration order, drives deterministic fan-out
	byName   map[string]*Adapter
	pools    *Pools
	deadline time.Duration // overall budget for best_effort runs
}

// Option configures the engine.
type Option func(*Engine)

// WithBestEffortDeadline sets the overall budget for best_effort runs.
func WithBestEffortDeadline(d time.Duration) Option {
	return func(e *Engine) { e.deadline = d }
}

// NewEngine creates an engine over the registered adapters.
func NewEngine(adapters []*Adapter, pools *Pools, opts ...Option) *Engine {
	e := &Engine{
		adapters: adapters,
		byName:   make(map[string]*Adapter, len(adapters)),
		pools:    pools,
		deadline: 10 * time.Second,
	}
	for _, a := range adapters {
		e.byName[a.name] = a
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ForDomain returns the adapters serving one domain and backend family, in
// registration order.
func (e *Engine) ForDomain(domainName string, b template.Backend) []*Adapter {
	var out []*Adapter
	for _, a := range e.adapters {
		if a.domain == domainName && a.backend == b {
			out = append(out, a)
		}
	}
	return out
}

// Adapters returns all registered adapters in registration order.
func (e *Engine) Adapters() []*Adapter { return e.adapters }

// execute runs one task through the adapter's breaker, retry policy, and
// operation timeout.
func (e *Engine) execute(ctx context.Context, t Task) Result {
	a := t.Adapter
	res := Result{
		TemplateID: t.TemplateID,
		Adapter:    a.name,
		Backend:    a.backend,
		Similarity: t.Similarity,
	}

	if err := a.breaker.Allow(); err != nil {
		metrics.ExecutionsTotal.WithLabelValues(a.name, string(a.backend), "rejected").Inc()
		res.Err = err
		return res
	}

	start := time.Now()
	var rows backend.Rows
	err := withRetry(ctx, a.retry, func(ctx context.Context) error {
		attemptCtx := ctx
		if a.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		run := func(ctx context.Context) error {
			var execErr error
			rows, execErr = a.conn.Execute(ctx, t.Query)
			return execErr
		}
		var attemptErr error
		if a.isolated {
			attemptErr = e.pools.Datasource.Run(attemptCtx, run)
		} else {
			attemptErr = run(attemptCtx)
		}
		return classify(attemptCtx, attemptErr)
	})
	res.Duration = time.Since(start)
	metrics.ExecutionDuration.WithLabelValues(a.name, string(a.backend)).Observe(res.Duration.Seconds())

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// The strategy cancelled this task after a sibling won; the
			// backend never failed, so the breaker records nothing.
			metrics.ExecutionsTotal.WithLabelValues(a.name, string(a.backend), "canceled").Inc()
			res.Err = err
			return res
		}
		a.breaker.RecordFailure()
		metrics.ExecutionsTotal.WithLabelValues(a.name, string(a.backend), status(err)).Inc()
		logger.FromContext(ctx).Warn("datasource execution failed",
			zap.String("adapter", a.name),
			zap.String("template_id", t.TemplateID),
			zap.Duration("duration", res.Duration),
			zap.Error(err))
		res.Err = err
		return res
	}

	a.breaker.RecordSuccess()
	metrics.ExecutionsTotal.WithLabelValues(a.name, string(a.backend), "success").Inc()
	res.Rows = rows
	return res
}

// classify maps an attempt's context expiry onto the timeout sentinel so
// callers can tell slow adapters from broken ones.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrExecutionTimeout, err)
	}
	return err
}

func status(err error) string {
	switch {
	case errors.Is(err, domain.ErrExecutionTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrCircuitOpen):
		return "rejected"
	default:
		return "failure"
	}
}
