package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/api"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/auth"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/config"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/document"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/search"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/translate"
)

const shutdownTimeout = 15 * time.Second

// globalFlags override the environment configuration.
type globalFlags struct {
	addr     string
	baseDir  string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "ipc-search",
		Short:        "IPC section lookup service",
		Long:         "Looks up Indian Penal Code sections by number, meaning and keywords.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.addr, "addr", "", "listen address (overrides ADDR)")
	root.PersistentFlags().StringVar(&flags.baseDir, "base-dir", "", "directory holding the data and cache files (overrides IPC_BASE_DIR)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), flags)
			},
		},
		newSearchCmd(flags),
		newIndexCmd(flags),
		newTokenCmd(flags),
	)
	return root
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.addr != "" {
		cfg.Addr = flags.addr
	}
	if flags.baseDir != "" {
		cfg.BaseDir = flags.baseDir
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// newEmbedder builds the configured embedding provider behind the query cache.
// A provider that cannot be created is logged and nil is returned, which
// leaves the engine without semantic search.
func newEmbedder(cfg *config.Config, logger *slog.Logger) (search.Embedder, func()) {
	var base search.Embedder
	switch cfg.EmbeddingProvider {
	case config.EmbeddingProviderOpenAI:
		e, err := search.NewOpenAIEmbedder(search.OpenAIConfig{
			Host:  cfg.EmbeddingHost,
			Model: cfg.EmbeddingModel,
			Token: cfg.EmbeddingToken,
		}, cfg.IndexBatchSize)
		if err != nil {
			logger.Error("embedding provider unavailable", "provider", cfg.EmbeddingProvider, "err", err)
			return nil, func() {}
		}
		base = e
	default:
		base = search.NewHashEmbedder(cfg.EmbeddingDims)
	}

	cached, err := search.NewCachedEmbedder(base, int64(cfg.QueryCacheEntries),
		search.WithCallTimeout(cfg.ExternalTimeout),
		search.WithEmbedderLogger(logger))
	if err != nil {
		logger.Warn("query cache unavailable, embedding without it", "err", err)
		return base, func() {}
	}
	logger.Info("embedding provider ready", "provider", cfg.EmbeddingProvider, "model", base.ModelID())
	return cached, cached.Close
}

func newTranslator(cfg *config.Config, logger *slog.Logger) translate.Translator {
	if !cfg.TranslationEnabled {
		return translate.Noop{}
	}
	tr, err := translate.New(translate.Config{
		Host:    cfg.TranslationHost,
		Model:   cfg.TranslationModel,
		Token:   cfg.TranslationToken,
		Timeout: cfg.ExternalTimeout,
	}, translate.WithLogger(logger))
	if err != nil {
		logger.Warn("translation unavailable, queries are used as given", "err", err)
		return translate.Noop{}
	}
	return tr
}

func bootstrapConfig(cfg *config.Config, force bool) search.BootstrapConfig {
	return search.BootstrapConfig{
		DataPath:     cfg.DataPath(),
		CachePath:    cfg.CachePath(),
		Workers:      cfg.IndexWorkers,
		BatchSize:    cfg.IndexBatchSize,
		ForceRebuild: force,
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, closeEmbedder := newEmbedder(cfg, logger)
	defer closeEmbedder()

	engine := search.Bootstrap(ctx, bootstrapConfig(cfg, false), embedder, logger)

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled() {
		jwtManager, err = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
		if err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(
		engine,
		newTranslator(cfg, logger),
		document.NewProcessor(document.WithMaxSize(cfg.MaxUploadBytes), document.WithLogger(logger)),
		logger,
	)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustedProxies: cfg.TrustedProxies,
		JWT:            jwtManager,
	}, logger)
	// multipart bodies beyond the upload limit spill to disk
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", server.Addr,
			"corpus_size", engine.CorpusSize(),
			"semantic_enabled", engine.SemanticEnabled(),
			"auth", cfg.AuthEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "err", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
