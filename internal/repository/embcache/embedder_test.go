package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/db"
	"github.com/arcware-ai/intentq/internal/domain"
)

type countingEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (e *countingEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: e.vec, TotalTokens: 7}, nil
}

type mapStore struct {
	data map[string][]byte
}

func newMapStore() *mapStore { return &mapStore{data: make(map[string][]byte)} }

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte) error {
	s.data[key] = value
	return nil
}

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.1, -0.5, 2}}
	c := New(inner, newMapStore(), "intentq:", nil, zap.NewNop())
	ctx := context.Background()

	first, err := c.Embed(ctx, "show me recent errors")
	if err != nil {
		t.Fatalf("first embed: %v", err)
	}
	if first.TotalTokens != 7 {
		t.Errorf("miss should report provider tokens, got %d", first.TotalTokens)
	}

	second, err := c.Embed(ctx, "show me recent errors")
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected one provider call, got %d", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit must not report tokens, got %d", second.TotalTokens)
	}
	if len(second.Embedding) != 3 || second.Embedding[2] != 2 {
		t.Errorf("cached vector mismatch: %v", second.Embedding)
	}
}

func TestEmbed_DistinctTextsDistinctKeys(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1}}
	c := New(inner, newMapStore(), "intentq:", nil, zap.NewNop())
	ctx := context.Background()

	if _, err := c.Embed(ctx, "query one"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := c.Embed(ctx, "query two"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("expected two provider calls, got %d", inner.calls)
	}
}

func TestEmbed_ProviderErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("rate limited")}
	store := newMapStore()
	c := New(inner, store, "intentq:", nil, zap.NewNop())

	if _, err := c.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error from provider")
	}
	if len(store.data) != 0 {
		t.Errorf("failed embed must not be cached, store has %d entries", len(store.data))
	}
}

func TestEmbed_CorruptCacheEntryFallsThrough(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1, 2}}
	store := newMapStore()
	c := New(inner, store, "intentq:", nil, zap.NewNop())
	ctx := context.Background()

	store.data[c.cacheKey("q")] = []byte{1, 2, 3} // not a multiple of 4

	res, err := c.Embed(ctx, "q")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("corrupt entry should fall through to provider, calls=%d", inner.calls)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("unexpected vector: %v", res.Embedding)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}
}
