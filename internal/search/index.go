package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/corpus"
	"github.com/sanjeevkumarraob/ipc-search-service/pkg/vectorstore"
)

// IndexSource says where a built index came from.
type IndexSource string

const (
	IndexFromCache   IndexSource = "cache"
	IndexComputed    IndexSource = "computed"
	IndexEmptyCorpus IndexSource = "empty"
)

// IndexBuilder produces one vector per corpus entry, reusing the on-disk cache
// when its fingerprint matches.
type IndexBuilder struct {
	embedder  Embedder
	cachePath string
	workers   int
	batchSize int
	force     bool
	logger    *slog.Logger
}

// IndexOption configures an IndexBuilder.
type IndexOption func(*IndexBuilder)

// WithWorkers sets how many embedding batches run concurrently.
func WithWorkers(n int) IndexOption {
	return func(b *IndexBuilder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithBatchSize sets how many texts go into one embedding call.
func WithBatchSize(n int) IndexOption {
	return func(b *IndexBuilder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithForceRebuild ignores any existing cache.
func WithForceRebuild(force bool) IndexOption {
	return func(b *IndexBuilder) {
		b.force = force
	}
}

// WithIndexLogger sets the builder's logger.
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(b *IndexBuilder) {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
	}
}

// NewIndexBuilder creates a builder. An empty cachePath disables persistence.
func NewIndexBuilder(embedder Embedder, cachePath string, opts ...IndexOption) (*IndexBuilder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &IndexBuilder{
		embedder:  embedder,
		cachePath: cachePath,
		workers:   4,
		batchSize: 32,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "index-builder")
	return b, nil
}

// Build returns a vector store index-aligned with c. Cache read failures fall
// through to recomputation; cache write failures are logged and ignored.
func (b *IndexBuilder) Build(ctx context.Context, c *corpus.Corpus) (*vectorstore.Store, IndexSource, error) {
	if c.Len() == 0 {
		return nil, IndexEmptyCorpus, nil
	}

	fingerprint := c.Fingerprint(b.embedder.ModelID())

	if b.cachePath != "" && !b.force {
		vectors, err := vectorstore.LoadCache(b.cachePath, fingerprint)
		switch {
		case err == nil && len(vectors) == c.Len():
			store, err := vectorstore.NewStore(vectors)
			if err == nil {
				b.logger.Info("loaded cached embeddings", "path", b.cachePath, "count", store.Len())
				return store, IndexFromCache, nil
			}
			b.logger.Warn("cached embeddings unusable, recomputing", "err", err)
		case err == nil:
			b.logger.Warn("cached embeddings do not match corpus size, recomputing",
				"cached", len(vectors), "corpus", c.Len())
		case errors.Is(err, vectorstore.ErrCacheMissing):
			b.logger.Info("no embedding cache found", "path", b.cachePath)
		default:
			b.logger.Warn("failed to load embedding cache, recomputing", "err", err)
		}
	}

	b.logger.Info("computing embeddings", "count", c.Len(), "model", b.embedder.ModelID())
	start := time.Now()
	vectors, err := b.embedAll(ctx, c.Texts())
	if err != nil {
		return nil, "", err
	}
	store, err := vectorstore.NewStore(vectors)
	if err != nil {
		return nil, "", err
	}
	b.logger.Info("embeddings computed", "count", store.Len(), "dims", store.Dims(), "took", time.Since(start))

	if b.cachePath != "" {
		if err := vectorstore.SaveCache(b.cachePath, fingerprint, vectors); err != nil {
			b.logger.Error("failed to save embedding cache", "path", b.cachePath, "err", err)
		} else {
			b.logger.Info("embeddings cached", "path", b.cachePath)
		}
	}
	return store, IndexComputed, nil
}

// embedAll splits texts into batches and embeds them on a worker pool. The
// result is index-aligned with texts.
func (b *IndexBuilder) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	pool, err := ants.NewPool(b.workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vecs, err := b.embedder.EmbedTexts(ctx, texts[start:end])
			if err != nil {
				fail(fmt.Errorf("embed batch %d-%d: %w", start, end, err))
				return
			}
			if len(vecs) != end-start {
				fail(fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs)))
				return
			}
			copy(vectors[start:end], vecs)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit batch %d-%d: %w", start, end, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}
