package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Embedding provider names accepted by EMBEDDING_PROVIDER.
const (
	EmbeddingProviderLocal  = "local"
	EmbeddingProviderOpenAI = "openai"
)

// Config holds the service configuration read from the environment.
type Config struct {
	Addr         string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`

	BaseDir   string `env:"IPC_BASE_DIR" envDefault:"."`
	DataFile  string `env:"IPC_DATA_FILE" envDefault:"ipc_data.json"`
	CacheFile string `env:"IPC_CACHE_FILE" envDefault:"ipc_embeddings.bin"`

	EmbeddingProvider string `env:"EMBEDDING_PROVIDER" envDefault:"local"`
	EmbeddingHost     string `env:"EMBEDDING_HOST" envDefault:"http://localhost:11434/v1"`
	EmbeddingModel    string `env:"EMBEDDING_MODEL" envDefault:"all-minilm"`
	EmbeddingToken    string `env:"EMBEDDING_TOKEN" envDefault:"none"`
	EmbeddingDims     int    `env:"EMBEDDING_DIMS" envDefault:"384"`

	TranslationEnabled bool   `env:"TRANSLATION_ENABLED" envDefault:"false"`
	TranslationHost    string `env:"TRANSLATION_HOST" envDefault:"http://localhost:11434/v1"`
	TranslationModel   string `env:"TRANSLATION_MODEL" envDefault:"qwen2.5:3b"`
	TranslationToken   string `env:"TRANSLATION_TOKEN" envDefault:"none"`

	// ExternalTimeout bounds every embedding and translation call made on a request path.
	ExternalTimeout time.Duration `env:"EXTERNAL_TIMEOUT" envDefault:"5s"`

	IndexWorkers      int `env:"INDEX_WORKERS" envDefault:"4"`
	IndexBatchSize    int `env:"INDEX_BATCH_SIZE" envDefault:"32"`
	QueryCacheEntries int `env:"QUERY_CACHE_ENTRIES" envDefault:"10000"`

	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"20"`
	// TrustedProxies are the only peers whose X-Forwarded-For is honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// JWTSecret enables bearer token auth on /api when set.
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize puts hosts and names into canonical form.
func (c *Config) Normalize() {
	c.EmbeddingProvider = strings.ToLower(strings.TrimSpace(c.EmbeddingProvider))
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.TranslationHost = normalizeHost(c.TranslationHost)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// OpenAI-compatible servers (Ollama, vLLM, LocalAI) expect the /v1 prefix.
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate normalizes the configuration and rejects values the service cannot run with.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.EmbeddingProvider {
	case EmbeddingProviderLocal, EmbeddingProviderOpenAI:
	default:
		return fmt.Errorf("config: unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	if c.EmbeddingProvider == EmbeddingProviderOpenAI && c.EmbeddingHost == "" {
		return errors.New("config: EMBEDDING_HOST is required for the openai provider")
	}
	if c.EmbeddingDims <= 0 {
		return errors.New("config: EMBEDDING_DIMS must be positive")
	}
	if c.TranslationEnabled && c.TranslationHost == "" {
		return errors.New("config: TRANSLATION_HOST is required when translation is enabled")
	}
	if c.ExternalTimeout <= 0 {
		return errors.New("config: EXTERNAL_TIMEOUT must be positive")
	}
	if c.IndexWorkers < 1 {
		return errors.New("config: INDEX_WORKERS must be at least 1")
	}
	if c.IndexBatchSize < 1 {
		return errors.New("config: INDEX_BATCH_SIZE must be at least 1")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("config: rate limit values must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// DataPath is the corpus file resolved against BaseDir.
func (c *Config) DataPath() string {
	return c.resolve(c.DataFile)
}

// CachePath is the vector cache file resolved against BaseDir.
func (c *Config) CachePath() string {
	return c.resolve(c.CacheFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.BaseDir, name)
}

// AuthEnabled reports whether /api requires a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown LOG_LEVEL %q", level)
}
