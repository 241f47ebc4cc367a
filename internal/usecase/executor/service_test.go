package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/template"
	"github.com/arcware-ai/intentq/internal/translator"
)

// --- Mocks ---

// stubConn scripts per-call outcomes.
type stubConn struct {
	calls atomic.Int32
	rows  backend.Rows
	errs  []error // consumed per call; nil past the end
	delay time.Duration
}

func (c *stubConn) Execute(ctx context.Context, _ translator.Query) (backend.Rows, error) {
	n := int(c.calls.Add(1)) - 1
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n < len(c.errs) && c.errs[n] != nil {
		return nil, c.errs[n]
	}
	return c.rows, nil
}

func testSettings(name string) AdapterSettings {
	return AdapterSettings{
		Name:             name,
		Backend:          template.BackendSQL,
		Domain:           "observability",
		OperationTimeout: time.Second,
		Breaker: BreakerSettings{
			FailureThreshold:   3,
			RecoveryTimeout:    time.Minute,
			SuccessThreshold:   1,
			MaxRecoveryTimeout: 10 * time.Minute,
		},
	}
}

func testTask(a *Adapter) Task {
	return Task{Adapter: a, Query: translator.SQLQuery{Statement: "SELECT 1"}, TemplateID: "tpl", Similarity: 0.9}
}

func newTestEngine(adapters ...*Adapter) *Engine {
	return NewEngine(adapters, NewPools(4, 2, 2))
}

// --- Tests ---

func TestExecute_Success(t *testing.T) {
	conn := &stubConn{rows: backend.Rows{{"n": int64(1)}}}
	a := NewAdapter(conn, testSettings("a1"))
	e := newTestEngine(a)

	res := e.execute(context.Background(), testTask(a))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Rows) != 1 {
		t.Errorf("expected one row, got %v", res.Rows)
	}
	if res.Adapter != "a1" || res.TemplateID != "tpl" {
		t.Errorf("unexpected provenance: %+v", res)
	}
}

func TestExecute_RetriesTransientFailure(t *testing.T) {
	conn := &stubConn{
		rows: backend.Rows{{"ok": true}},
		errs: []error{errors.New("flaky"), errors.New("flaky")},
	}
	cfg := testSettings("a1")
	cfg.Retry = RetrySettings{MaxRetries: 2, Delay: time.Millisecond}
	a := NewAdapter(conn, cfg)
	e := newTestEngine(a)

	res := e.execute(context.Background(), testTask(a))
	if res.Err != nil {
		t.Fatalf("expected retries to recover, got %v", res.Err)
	}
	if got := conn.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestExecute_RetriesExhausted(t *testing.T) {
	conn := &stubConn{errs: []error{errors.New("down"), errors.New("down")}}
	cfg := testSettings("a1")
	cfg.Retry = RetrySettings{MaxRetries: 1, Delay: time.Millisecond}
	a := NewAdapter(conn, cfg)
	e := newTestEngine(a)

	res := e.execute(context.Background(), testTask(a))
	if res.Err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if got := conn.calls.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestExecute_TimeoutClassified(t *testing.T) {
	conn := &stubConn{delay: 200 * time.Millisecond}
	cfg := testSettings("a1")
	cfg.OperationTimeout = 20 * time.Millisecond
	a := NewAdapter(conn, cfg)
	e := newTestEngine(a)

	res := e.execute(context.Background(), testTask(a))
	if !errors.Is(res.Err, domain.ErrExecutionTimeout) {
		t.Fatalf("expected ErrExecutionTimeout, got %v", res.Err)
	}
}

func TestExecute_OpenBreakerFastFails(t *testing.T) {
	conn := &stubConn{delay: 100 * time.Millisecond}
	a := NewAdapter(conn, testSettings("a1"))
	e := newTestEngine(a)

	for i := 0; i < 3; i++ {
		a.breaker.RecordFailure()
	}

	start := time.Now()
	res := e.execute(context.Background(), testTask(a))
	elapsed := time.Since(start)

	if !errors.Is(res.Err, domain.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", res.Err)
	}
	if elapsed > 20*time.Millisecond {
		t.Errorf("fast-fail took %v, connection must not be touched", elapsed)
	}
	if conn.calls.Load() != 0 {
		t.Error("open breaker must not reach the connection")
	}
}

func TestExecute_FailuresOpenBreaker(t *testing.T) {
	conn := &stubConn{errs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	a := NewAdapter(conn, testSettings("a1"))
	e := newTestEngine(a)

	for i := 0; i < 3; i++ {
		_ = e.execute(context.Background(), testTask(a))
	}
	if a.breaker.State() != StateOpen {
		t.Fatalf("expected breaker open after consecutive failures, got %v", a.breaker.State())
	}
}

func TestExecute_SiblingCancellationSparesBreaker(t *testing.T) {
	conn := &stubConn{delay: 300 * time.Millisecond}
	a := NewAdapter(conn, testSettings("a1"))
	e := newTestEngine(a)

	// Losing a race must not count against the adapter, even past the
	// failure threshold.
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()
		res := e.execute(ctx, testTask(a))
		cancel()
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("run %d: expected context.Canceled, got %v", i, res.Err)
		}
	}

	if a.breaker.State() != StateClosed {
		t.Fatalf("cancelled runs must not open the breaker, got %v", a.breaker.State())
	}

	conn.delay = 0
	if res := e.execute(context.Background(), testTask(a)); res.Err != nil {
		t.Fatalf("healthy adapter failed after cancellations: %v", res.Err)
	}
}

func TestNewAdapter_ProcessIsolationUsesPool(t *testing.T) {
	if NewAdapter(&stubConn{}, testSettings("plain")).Isolated() {
		t.Error("isolation must be off by default")
	}

	thread := testSettings("thread")
	thread.ThreadIsolation = true
	if !NewAdapter(&stubConn{}, thread).Isolated() {
		t.Error("thread isolation must route through the pool")
	}

	process := testSettings("process")
	process.ProcessIsolation = true
	if !NewAdapter(&stubConn{}, process).Isolated() {
		t.Error("process isolation must route through the pool")
	}
}

func TestForDomain_RegistrationOrder(t *testing.T) {
	a1 := NewAdapter(&stubConn{}, testSettings("first"))
	a2 := NewAdapter(&stubConn{}, testSettings("second"))
	other := NewAdapter(&stubConn{}, AdapterSettings{
		Name: "other", Backend: template.BackendHTTP, Domain: "observability",
		Breaker: testSettings("x").Breaker,
	})
	e := newTestEngine(a1, a2, other)

	got := e.ForDomain("observability", template.BackendSQL)
	if len(got) != 2 || got[0].Name() != "first" || got[1].Name() != "second" {
		t.Errorf("unexpected adapter order: %v", got)
	}
	if len(e.ForDomain("billing", template.BackendSQL)) != 0 {
		t.Error("expected no adapters for unknown domain")
	}
}
