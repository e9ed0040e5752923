package stream

import (
	"bytes"
	"errors"
	"io"
)

// ErrLimitExceeded is returned when a stream holds more bytes than allowed.
var ErrLimitExceeded = errors.New("stream exceeds size limit")

// DefaultChunkSize is used when a non-positive chunk size is given.
const DefaultChunkSize = 32 * 1024

// ChunkedReader reads a stream in fixed-size chunks.
type ChunkedReader struct {
	reader    io.Reader
	chunkSize int
	buffer    []byte
	eof       bool
}

// NewChunkedReader creates a new chunked reader
func NewChunkedReader(reader io.Reader, chunkSize int) *ChunkedReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkedReader{
		reader:    reader,
		chunkSize: chunkSize,
		buffer:    make([]byte, chunkSize),
	}
}

// NextChunk returns up to chunkSize bytes. Only the final chunk may be short.
// The returned slice is reused by the next call.
func (cr *ChunkedReader) NextChunk() ([]byte, error) {
	if cr.eof {
		return nil, io.EOF
	}

	n, err := io.ReadFull(cr.reader, cr.buffer)
	switch {
	case errors.Is(err, io.EOF):
		cr.eof = true
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		cr.eof = true
		return cr.buffer[:n], nil
	case err != nil:
		return nil, err
	}
	return cr.buffer[:n], nil
}

// ReadAll reads every remaining chunk into one slice, failing with
// ErrLimitExceeded as soon as more than limit bytes have been seen.
// A non-positive limit disables the check.
func (cr *ChunkedReader) ReadAll(limit int64) ([]byte, error) {
	var out bytes.Buffer
	for {
		chunk, err := cr.NextChunk()
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		if limit > 0 && int64(out.Len()+len(chunk)) > limit {
			return nil, ErrLimitExceeded
		}
		out.Write(chunk)
	}
}

// ReadLimited reads r fully, failing with ErrLimitExceeded when it holds more
// than limit bytes.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	return NewChunkedReader(r, DefaultChunkSize).ReadAll(limit)
}
