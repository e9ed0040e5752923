package vectorstore

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSearch(t *testing.T) {
	s, err := NewStore([][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
		{1, 0, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 3, s.Dims())

	hits, err := s.Search([]float32{2, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// equal scores keep storage order
	assert.Equal(t, 0, hits[0].Index)
	assert.Equal(t, 3, hits[1].Index)
	assert.Equal(t, 2, hits[2].Index)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
}

func TestStoreSearchEdgeCases(t *testing.T) {
	s, err := NewStore([][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	t.Run("limit larger than store", func(t *testing.T) {
		hits, err := s.Search([]float32{1, 1}, 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("zero limit", func(t *testing.T) {
		hits, err := s.Search([]float32{1, 1}, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := s.Search([]float32{1, 1, 1}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("zero query", func(t *testing.T) {
		hits, err := s.Search([]float32{0, 0}, 1)
		require.NoError(t, err)
		assert.Equal(t, 0.0, hits[0].Score)
	})

	t.Run("nil store", func(t *testing.T) {
		var empty *Store
		hits, err := empty.Search([]float32{1}, 1)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestNewStoreRejectsMixedDims(t *testing.T) {
	_, err := NewStore([][]float32{{1, 0}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, CosineSimilarity([]float32{1, 0}, []float32{1, 1}), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vectors.bin")
	vectors := [][]float32{{0.1, 0.2, 0.3}, {-1, 0, 1}}

	require.NoError(t, SaveCache(path, 42, vectors))

	got, err := LoadCache(path, 42)
	require.NoError(t, err)
	assert.Equal(t, vectors, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be renamed away")
}

func TestLoadCacheFailures(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		_, err := LoadCache(filepath.Join(dir, "absent.bin"), 1)
		assert.ErrorIs(t, err, ErrCacheMissing)
	})

	t.Run("stale fingerprint", func(t *testing.T) {
		path := filepath.Join(dir, "stale.bin")
		require.NoError(t, SaveCache(path, 1, [][]float32{{1}}))
		_, err := LoadCache(path, 2)
		assert.ErrorIs(t, err, ErrCacheStale)
	})

	t.Run("flipped byte", func(t *testing.T) {
		path := filepath.Join(dir, "flipped.bin")
		require.NoError(t, SaveCache(path, 1, [][]float32{{1, 2}}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		data[cacheHeaderSize] ^= 0xff
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err = LoadCache(path, 1)
		assert.ErrorIs(t, err, ErrCacheCorrupt)
	})

	t.Run("truncated", func(t *testing.T) {
		path := filepath.Join(dir, "short.bin")
		require.NoError(t, os.WriteFile(path, []byte("IPCV"), 0o644))
		_, err := LoadCache(path, 1)
		assert.ErrorIs(t, err, ErrCacheCorrupt)
	})

	t.Run("foreign file", func(t *testing.T) {
		path := filepath.Join(dir, "foreign.bin")
		require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))
		_, err := LoadCache(path, 1)
		assert.ErrorIs(t, err, ErrCacheCorrupt)
	})
}

func TestSaveCacheRejectsMixedDims(t *testing.T) {
	err := SaveCache(filepath.Join(t.TempDir(), "v.bin"), 1, [][]float32{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
