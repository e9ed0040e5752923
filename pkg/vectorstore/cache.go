package vectorstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
)

var (
	// ErrCacheMissing is returned when no cache file exists.
	ErrCacheMissing = errors.New("vector cache not found")

	// ErrCacheStale is returned when the cache was built from different content.
	ErrCacheStale = errors.New("vector cache is stale")

	// ErrCacheCorrupt is returned when the cache file fails structural checks.
	ErrCacheCorrupt = errors.New("vector cache is corrupt")
)

// Cache file layout, little endian:
//
//	[4B magic "IPCV"][2B version][2B reserved]
//	[8B fingerprint]
//	[4B count][4B dims]
//	[count * dims * 4B float32]
//	[4B CRC32-C of everything above]
var cacheMagic = [4]byte{'I', 'P', 'C', 'V'}

const (
	cacheVersion     = uint16(1)
	cacheHeaderSize  = 24
	cacheTrailerSize = 4
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// SaveCache writes vectors to path tagged with fingerprint. The write goes to a
// temporary file first so a crash never leaves a half-written cache behind.
func SaveCache(path string, fingerprint uint64, vectors [][]float32) error {
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	payload := len(vectors) * dims * 4
	buf := make([]byte, cacheHeaderSize+payload+cacheTrailerSize)

	copy(buf[0:4], cacheMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], cacheVersion)
	binary.LittleEndian.PutUint64(buf[8:16], fingerprint)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(dims))

	off := cacheHeaderSize
	for i, vec := range vectors {
		if len(vec) != dims {
			return fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(vec), dims)
		}
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	binary.LittleEndian.PutUint32(buf[off:], crc32.Checksum(buf[:off], castagnoli))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadCache reads vectors from path. The cache must carry the expected
// fingerprint, otherwise ErrCacheStale is returned.
func LoadCache(path string, fingerprint uint64) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMissing
		}
		return nil, err
	}
	if len(data) < cacheHeaderSize+cacheTrailerSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrCacheCorrupt, len(data))
	}
	if [4]byte(data[0:4]) != cacheMagic {
		return nil, fmt.Errorf("%w: bad magic %x", ErrCacheCorrupt, data[0:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != cacheVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCacheCorrupt, v)
	}

	n := int(binary.LittleEndian.Uint32(data[16:20]))
	dims := int(binary.LittleEndian.Uint32(data[20:24]))
	payloadEnd := cacheHeaderSize + n*dims*4
	if len(data) != payloadEnd+cacheTrailerSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrCacheCorrupt, payloadEnd+cacheTrailerSize, len(data))
	}

	stored := binary.LittleEndian.Uint32(data[payloadEnd:])
	if computed := crc32.Checksum(data[:payloadEnd], castagnoli); stored != computed {
		return nil, fmt.Errorf("%w: checksum mismatch: stored %08x, computed %08x", ErrCacheCorrupt, stored, computed)
	}

	if got := binary.LittleEndian.Uint64(data[8:16]); got != fingerprint {
		return nil, fmt.Errorf("%w: fingerprint %016x, want %016x", ErrCacheStale, got, fingerprint)
	}

	vectors := make([][]float32, n)
	off := cacheHeaderSize
	for i := range vectors {
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vectors[i] = vec
	}
	return vectors, nil
}
