package extractor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoText is returned when a document parsed but held no text.
var ErrNoText = errors.New("no text extracted from document")

// PlainExtractor extracts text from plain text and HTML documents
type PlainExtractor struct{}

// NewPlainExtractor creates a new plain text extractor
func NewPlainExtractor() *PlainExtractor {
	return &PlainExtractor{}
}

// Extract splits a plain text document into paragraphs. Lines inside a
// paragraph are joined with a space; blank lines end a paragraph. Lines have
// no length limit of their own, the caller bounds the whole input.
func (e *PlainExtractor) Extract(ctx context.Context, reader io.Reader) ([]string, error) {
	br := bufio.NewReader(reader)

	var paragraphs []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			paragraphs = append(paragraphs, current.String())
			current.Reset()
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		line = strings.TrimSpace(strings.ToValidUTF8(line, ""))
		if line == "" {
			flush()
		} else {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(line)
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}
	flush()

	if len(paragraphs) == 0 {
		return nil, ErrNoText
	}
	return paragraphs, nil
}

// ExtractHTML returns the visible text of an HTML document as a single paragraph.
func (e *PlainExtractor) ExtractHTML(ctx context.Context, reader io.Reader) ([]string, error) {
	doc, err := html.Parse(reader)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var b strings.Builder
	e.extractTextFromNode(doc, &b)

	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, ErrNoText
	}
	return []string{text}, nil
}

func (e *PlainExtractor) extractTextFromNode(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
		return
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(text + " ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.extractTextFromNode(c, b)
	}
}
