package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"frameworks/coursebook/pkg/cache"
	"frameworks/coursebook/pkg/llm"
)

// Embedder turns texts into fixed-width vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LocalEmbedder hashes word and character-trigram features into a fixed
// number of buckets. It needs no corpus preparation and no network, so any
// process embeds a text the same way.
type LocalEmbedder struct {
	dimensions int
	tokens     *regexp.Regexp
	stopwords  map[string]struct{}
}

const trigramWeight = 0.5

func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &LocalEmbedder{
		dimensions: dimensions,
		tokens:     regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:  defaultStopwords(),
	}
}

func (e *LocalEmbedder) Dimensions() int { return e.dimensions }

func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float64, e.dimensions)
	for _, tok := range e.tokens.FindAllString(strings.ToLower(text), -1) {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		e.addFeature(vec, "w:"+tok, 1)
		padded := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(padded); i++ {
			e.addFeature(vec, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}
	return normalize(vec)
}

// addFeature uses the low bits for the bucket and bit 63 for the sign, which
// keeps collisions unbiased.
func (e *LocalEmbedder) addFeature(vec []float64, feature string, weight float64) {
	h := xxhash.Sum64String(feature)
	bucket := int(h % uint64(e.dimensions))
	if h>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

func normalize(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "it", "this", "that", "these", "those", "from",
		"into", "about", "so", "than", "can", "will", "just", "what", "how", "do", "does",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// RemoteEmbedder delegates to an embedding API and checks the width of every
// returned vector.
type RemoteEmbedder struct {
	client     llm.EmbeddingClient
	dimensions int
}

func NewRemoteEmbedder(client llm.EmbeddingClient, dimensions int) *RemoteEmbedder {
	return &RemoteEmbedder{client: client, dimensions: dimensions}
}

func (e *RemoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.client.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(vectors), len(texts))
	}
	if e.dimensions > 0 {
		for i, v := range vectors {
			if len(v) != e.dimensions {
				return nil, fmt.Errorf("embed: vector %d has %d dimensions, want %d", i, len(v), e.dimensions)
			}
		}
	}
	return vectors, nil
}

// CachedEmbedder memoizes single-text lookups (queries and course-name
// resolution). Batch calls from ingestion reuse cached vectors but never
// populate the cache.
type CachedEmbedder struct {
	next  Embedder
	cache *cache.Cache[[]float32]
}

var errNoVector = errors.New("embedder returned no vector")

func NewCachedEmbedder(next Embedder, ttl time.Duration, maxEntries int) *CachedEmbedder {
	hooks := cache.MetricsHooks{
		OnHit:  func(string) { embeddingCacheTotal.WithLabelValues("hit").Inc() },
		OnMiss: func(string) { embeddingCacheTotal.WithLabelValues("miss").Inc() },
		OnStale: func(string) {
			embeddingCacheTotal.WithLabelValues("stale").Inc()
		},
	}
	return &CachedEmbedder{
		next: next,
		cache: cache.New[[]float32]("query_embeddings", cache.Options{
			TTL:        ttl,
			MaxEntries: maxEntries,
		}, hooks),
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return e.embedBatch(ctx, texts)
	}
	vec, ok, err := e.cache.Get(ctx, texts[0], func(ctx context.Context, key string) ([]float32, bool, error) {
		vectors, err := e.next.Embed(ctx, []string{key})
		if err != nil {
			return nil, false, err
		}
		if len(vectors) != 1 {
			return nil, false, errNoVector
		}
		return vectors[0], true, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoVector
	}
	return [][]float32{vec}, nil
}

func (e *CachedEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var positions []int
	for i, text := range texts {
		if vec, ok := e.cache.Peek(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		positions = append(positions, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vectors, err := e.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(vectors), len(missing))
	}
	for j, pos := range positions {
		out[pos] = vectors[j]
	}
	return out, nil
}

// Purge drops every cached vector and reports how many were held.
func (e *CachedEmbedder) Purge() int {
	n := e.cache.Len()
	e.cache.Purge()
	return n
}

// cosineDistance is 1 - cosine similarity; zero vectors are maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
