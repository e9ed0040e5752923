package search

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrEmbedderRequired is returned when a component needs an embedder and got nil.
var ErrEmbedderRequired = errors.New("embedder required")

// Embedder maps text to fixed-length vectors. Implementations must be safe for
// concurrent use and deterministic for a given ModelID.
type Embedder interface {
	// EmbedText embeds a single string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts embeds a batch, preserving input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies the model and its settings. Vectors from different
	// model ids are not comparable.
	ModelID() string
}

// HashEmbedder is a deterministic local embedder. Each content term (stemmed,
// with stop words and statute boilerplate removed) is hashed into one of a
// fixed number of buckets and the count vector is L2-normalized, so texts
// sharing vocabulary score high under cosine similarity. Text with no content
// terms embeds to the zero vector.
// It needs no network and no model download.
type HashEmbedder struct {
	vectorSize int
}

// NewHashEmbedder creates a hash embedder producing vectors of the given size.
func NewHashEmbedder(vectorSize int) *HashEmbedder {
	if vectorSize <= 0 {
		vectorSize = 384
	}
	return &HashEmbedder{vectorSize: vectorSize}
}

// EmbedText generates a vector embedding for the given text.
func (e *HashEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	embedding := make([]float32, e.vectorSize)
	for _, word := range contentTerms.Terms(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		embedding[h.Sum32()%uint32(e.vectorSize)]++
	}

	var sum float64
	for _, v := range embedding {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		n := float32(math.Sqrt(sum))
		for i := range embedding {
			embedding[i] /= n
		}
	}
	return embedding, nil
}

// EmbedTexts embeds every text in order.
func (e *HashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ModelID returns the embedder identity.
func (e *HashEmbedder) ModelID() string {
	return fmt.Sprintf("local-hash-%d", e.vectorSize)
}

// VectorSize returns the dimensionality of the embeddings.
func (e *HashEmbedder) VectorSize() int {
	return e.vectorSize
}

// CachedEmbedder memoizes single-text embeddings in a bounded in-memory cache and
// bounds every call with a timeout. Batch calls are passed straight through.
type CachedEmbedder struct {
	next    Embedder
	cache   *ristretto.Cache[string, []float32]
	timeout time.Duration
	logger  *slog.Logger
}

// CachedEmbedderOption configures a CachedEmbedder.
type CachedEmbedderOption func(*CachedEmbedder)

// WithCallTimeout bounds each EmbedText call. Zero disables the bound.
func WithCallTimeout(d time.Duration) CachedEmbedderOption {
	return func(c *CachedEmbedder) {
		c.timeout = d
	}
}

// WithEmbedderLogger sets the logger for cache diagnostics.
func WithEmbedderLogger(logger *slog.Logger) CachedEmbedderOption {
	return func(c *CachedEmbedder) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// NewCachedEmbedder wraps next with a cache holding up to maxEntries vectors.
func NewCachedEmbedder(next Embedder, maxEntries int64, opts ...CachedEmbedderOption) (*CachedEmbedder, error) {
	if next == nil {
		return nil, ErrEmbedderRequired
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}

	c := &CachedEmbedder{
		next:   next,
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "query-embedder")
	return c, nil
}

// EmbedText returns the cached vector for text or computes and caches it.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	v, err := c.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if !c.cache.Set(text, v, 1) {
		c.logger.Debug("query embedding not admitted to cache", "length", len(text))
	}
	return v, nil
}

// EmbedTexts delegates to the wrapped embedder without caching.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedTexts(ctx, texts)
}

// ModelID is the wrapped embedder's model id.
func (c *CachedEmbedder) ModelID() string {
	return c.next.ModelID()
}

// Wait blocks until pending cache writes are applied.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}
