package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/document"
)

// WordExtractor extracts body text from .docx documents
type WordExtractor struct{}

// NewWordExtractor creates a new Word extractor
func NewWordExtractor() *WordExtractor {
	return &WordExtractor{}
}

// Extract returns the non-empty paragraphs of a Word document, table cells
// included, one paragraph per line.
func (e *WordExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	var lines []string
	for _, para := range doc.Paragraphs() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var b strings.Builder
		for _, run := range para.Runs() {
			b.WriteString(run.Text())
		}
		if line := strings.Join(strings.Fields(b.String()), " "); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return "", ErrNoText
	}
	return strings.Join(lines, "\n"), nil
}
