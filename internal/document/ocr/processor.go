//go:build ocr

package ocr

import (
	"context"
	"io"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Processor runs Tesseract over uploaded images.
type Processor struct {
	mutex     sync.Mutex
	languages []string
}

// NewProcessor creates an OCR processor recognizing the given Tesseract
// languages, English and Hindi when none are given.
func NewProcessor(languages ...string) *Processor {
	if len(languages) == 0 {
		languages = []string{"eng", "hin"}
	}
	return &Processor{languages: languages}
}

// Available reports whether OCR is compiled in.
func (p *Processor) Available() bool { return true }

// Process extracts text paragraphs from an image.
func (p *Processor) Process(ctx context.Context, reader io.Reader) ([]string, error) {
	img, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// one Tesseract instance at a time keeps memory bounded
	p.mutex.Lock()
	defer p.mutex.Unlock()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.languages...); err != nil {
		return nil, err
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return nil, err
	}
	text, err := client.Text()
	if err != nil {
		return nil, err
	}

	paragraphs := splitIntoParagraphs(text)
	if len(paragraphs) == 0 {
		return nil, ErrNoText
	}
	return paragraphs, nil
}
