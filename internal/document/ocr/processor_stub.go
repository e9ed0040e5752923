//go:build !ocr

package ocr

import (
	"context"
	"io"
)

// Processor is a placeholder used when the binary is built without the ocr tag.
type Processor struct{}

// NewProcessor returns a processor that rejects every image.
func NewProcessor(_ ...string) *Processor {
	return &Processor{}
}

// Available reports whether OCR is compiled in.
func (p *Processor) Available() bool { return false }

// Process always fails with ErrOCRUnavailable.
func (p *Processor) Process(_ context.Context, _ io.Reader) ([]string, error) {
	return nil, ErrOCRUnavailable
}
