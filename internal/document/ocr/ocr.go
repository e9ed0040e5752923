package ocr

import (
	"errors"
	"strings"
)

var (
	// ErrOCRUnavailable is returned by builds without Tesseract support.
	ErrOCRUnavailable = errors.New("ocr support not compiled in")
	// ErrNoText is returned when recognition found no text in the image.
	ErrNoText = errors.New("no text extracted from image")
)

// splitIntoParagraphs splits recognized text on blank lines and collapses
// whitespace inside each paragraph.
func splitIntoParagraphs(text string) []string {
	var paragraphs []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p := strings.Join(strings.Fields(block), " "); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
