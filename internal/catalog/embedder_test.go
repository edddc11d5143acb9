package catalog

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalEmbedderDeterministicAndNormalized(t *testing.T) {
	e := NewLocalEmbedder(64)
	vectors, err := e.Embed(context.Background(), []string{"Building towards computer use", "Building towards computer use", ""})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 3 || len(vectors[0]) != 64 {
		t.Fatalf("unexpected shape %d x %d", len(vectors), len(vectors[0]))
	}
	if d := cosineDistance(vectors[0], vectors[1]); d > 1e-6 {
		t.Fatalf("identical texts should have zero distance, got %v", d)
	}
	var norm float64
	for _, v := range vectors[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Fatalf("expected unit vector, got norm %v", norm)
	}
	if d := cosineDistance(vectors[0], vectors[2]); d != 1 {
		t.Fatalf("empty text should be maximally distant, got %v", d)
	}
}

func TestLocalEmbedderPrefersSharedWords(t *testing.T) {
	e := NewLocalEmbedder(384)
	vectors, _ := e.Embed(context.Background(), []string{
		"MCP",
		"MCP: Build Rich-Context AI Apps with Anthropic",
		"Advanced Retrieval for AI with Chroma",
	})
	related := cosineDistance(vectors[0], vectors[1])
	unrelated := cosineDistance(vectors[0], vectors[2])
	if related >= unrelated {
		t.Fatalf("expected shared token to be closer: related=%v unrelated=%v", related, unrelated)
	}
}

type fakeEmbeddingClient struct {
	vectors [][]float32
	err     error
}

func (f fakeEmbeddingClient) Embed(context.Context, []string) ([][]float32, error) {
	return f.vectors, f.err
}

func TestRemoteEmbedderValidates(t *testing.T) {
	ctx := context.Background()
	ok := NewRemoteEmbedder(fakeEmbeddingClient{vectors: [][]float32{{1, 0}}}, 2)
	if _, err := ok.Embed(ctx, []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wrongWidth := NewRemoteEmbedder(fakeEmbeddingClient{vectors: [][]float32{{1, 0, 0}}}, 2)
	if _, err := wrongWidth.Embed(ctx, []string{"a"}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}

	wrongCount := NewRemoteEmbedder(fakeEmbeddingClient{vectors: [][]float32{{1, 0}}}, 2)
	if _, err := wrongCount.Embed(ctx, []string{"a", "b"}); err == nil {
		t.Fatalf("expected count mismatch error")
	}

	failing := NewRemoteEmbedder(fakeEmbeddingClient{err: errors.New("quota")}, 2)
	if _, err := failing.Embed(ctx, []string{"a"}); err == nil {
		t.Fatalf("expected upstream error")
	}
}

type countingEmbedder struct {
	calls atomic.Int32
	inner Embedder
	last  []string
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.last = texts
	return c.inner.Embed(ctx, texts)
}

func TestCachedEmbedderMemoizesSingleTexts(t *testing.T) {
	inner := &countingEmbedder{inner: NewLocalEmbedder(16)}
	e := NewCachedEmbedder(inner, time.Minute, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.Embed(ctx, []string{"what is mcp"}); err != nil {
			t.Fatalf("embed: %v", err)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}

	if _, err := e.Embed(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("batch embed: %v", err)
	}
	if _, err := e.Embed(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("batch embed: %v", err)
	}
	if got := inner.calls.Load(); got != 3 {
		t.Fatalf("expected batches to bypass the cache, got %d calls", got)
	}
}

func TestCachedEmbedderBatchReusesCachedVectors(t *testing.T) {
	inner := &countingEmbedder{inner: NewLocalEmbedder(16)}
	e := NewCachedEmbedder(inner, time.Minute, 10)
	ctx := context.Background()

	single, err := e.Embed(ctx, []string{"servers"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	batch, err := e.Embed(ctx, []string{"clients", "servers", "tools"})
	if err != nil {
		t.Fatalf("batch embed: %v", err)
	}
	if len(inner.last) != 2 || inner.last[0] != "clients" || inner.last[1] != "tools" {
		t.Fatalf("expected only uncached texts upstream, got %v", inner.last)
	}
	if len(batch) != 3 || cosineDistance(batch[1], single[0]) > 1e-6 {
		t.Fatalf("expected cached vector in position 1")
	}
	if n := e.Purge(); n != 1 {
		t.Fatalf("batch texts must not populate the cache, purged %d", n)
	}

	before := inner.calls.Load()
	if _, err := e.Embed(ctx, []string{"servers"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls.Load() != before+1 {
		t.Fatalf("expected purge to force an upstream call")
	}
}
