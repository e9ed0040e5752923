package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, EmbeddingProviderLocal, cfg.EmbeddingProvider)
	assert.Equal(t, 384, cfg.EmbeddingDims)
	assert.Equal(t, 5*time.Second, cfg.ExternalTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.AuthEnabled())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "OpenAI")
	t.Setenv("EMBEDDING_HOST", "http://embedder:8000/")
	t.Setenv("CORS_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("EXTERNAL_TIMEOUT", "750ms")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EmbeddingProviderOpenAI, cfg.EmbeddingProvider)
	assert.Equal(t, "http://embedder:8000/v1", cfg.EmbeddingHost)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 750*time.Millisecond, cfg.ExternalTimeout)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.TrustedProxies)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			EmbeddingProvider: "local",
			EmbeddingDims:     384,
			ExternalTimeout:   time.Second,
			IndexWorkers:      1,
			IndexBatchSize:    1,
			MaxUploadBytes:    1,
			LogLevel:          "info",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"unknown provider", func(c *Config) { c.EmbeddingProvider = "bert" }, false},
		{"openai without host", func(c *Config) { c.EmbeddingProvider = "openai"; c.EmbeddingHost = "" }, false},
		{"zero dims", func(c *Config) { c.EmbeddingDims = 0 }, false},
		{"translation without host", func(c *Config) { c.TranslationEnabled = true }, false},
		{"zero timeout", func(c *Config) { c.ExternalTimeout = 0 }, false},
		{"zero workers", func(c *Config) { c.IndexWorkers = 0 }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{BaseDir: "/srv/ipc", DataFile: "ipc_data.json", CacheFile: "/var/cache/ipc.bin"}

	assert.Equal(t, filepath.Join("/srv/ipc", "ipc_data.json"), cfg.DataPath())
	assert.Equal(t, "/var/cache/ipc.bin", cfg.CachePath())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
