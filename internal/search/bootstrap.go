package search

import (
	"context"
	"log/slog"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/corpus"
)

// BootstrapConfig locates the startup resources.
type BootstrapConfig struct {
	DataPath     string
	CachePath    string
	Workers      int
	BatchSize    int
	ForceRebuild bool
}

// Bootstrap loads the corpus and its vector index and returns a ready engine.
// It never fails: a missing corpus yields an engine that finds nothing, and a
// missing embedder or failed index build yields an engine without the semantic step.
func Bootstrap(ctx context.Context, cfg BootstrapConfig, embedder Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "bootstrap")

	log.Info("loading IPC data", "path", cfg.DataPath)
	c, err := corpus.Load(cfg.DataPath, corpus.WithLogger(logger))
	if err != nil {
		log.Error("IPC data unavailable, continuing with empty corpus", "err", err)
		c = corpus.Empty()
	} else {
		log.Info("loaded IPC sections", "count", c.Len())
	}

	opts := []EngineOption{WithLogger(logger)}
	if embedder == nil {
		log.Error("no embedding provider, semantic search disabled")
		return NewEngine(c, opts...)
	}

	builder, err := NewIndexBuilder(embedder, cfg.CachePath,
		WithWorkers(cfg.Workers),
		WithBatchSize(cfg.BatchSize),
		WithForceRebuild(cfg.ForceRebuild),
		WithIndexLogger(logger),
	)
	if err != nil {
		log.Error("failed to create index builder, semantic search disabled", "err", err)
		return NewEngine(c, opts...)
	}

	store, source, err := builder.Build(ctx, c)
	if err != nil {
		log.Error("failed to build semantic index, semantic search disabled", "err", err)
		return NewEngine(c, opts...)
	}
	log.Info("semantic index ready", "source", source, "vectors", store.Len())

	return NewEngine(c, append(opts, WithSemanticIndex(store, embedder))...)
}
