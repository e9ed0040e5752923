package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/document/extractor"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/document/ocr"
	"github.com/sanjeevkumarraob/ipc-search-service/pkg/stream"
)

// Error definitions
var (
	ErrFileTooLarge        = errors.New("file size exceeds maximum allowed size")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// PDFUnavailableMessage stands in for the text of a PDF that could not be read.
const PDFUnavailableMessage = "[Error: System cannot read PDF files currently. Please upload .txt or paste text.]"

// DefaultMaxSize is the upload limit used when none is configured.
const DefaultMaxSize int64 = 10 << 20

// ContentType represents supported document content types
type ContentType string

const (
	ContentTypePDF         ContentType = "application/pdf"
	ContentTypeWord        ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeImage       ContentType = "image"
	ContentTypeText        ContentType = "text/plain"
	ContentTypeHTML        ContentType = "text/html"
	ContentTypeUnsupported ContentType = ""
)

// Processor turns uploaded case documents into plain text.
type Processor struct {
	pdfExtractor   *extractor.PDFExtractor
	wordExtractor  *extractor.WordExtractor
	plainExtractor *extractor.PlainExtractor
	ocrProcessor   *ocr.Processor
	logger         *slog.Logger
	maxSize        int64
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
	}
}

// WithMaxSize sets the largest accepted upload in bytes.
func WithMaxSize(n int64) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxSize = n
		}
	}
}

// NewProcessor creates a new document processor
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		pdfExtractor:   extractor.NewPDFExtractor(),
		wordExtractor:  extractor.NewWordExtractor(),
		plainExtractor: extractor.NewPlainExtractor(),
		ocrProcessor:   ocr.NewProcessor(),
		logger:         slog.Default(),
		maxSize:        DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "document")
	return p
}

// MaxSize is the largest accepted upload in bytes.
func (p *Processor) MaxSize() int64 {
	return p.maxSize
}

// ExtractText reads an uploaded file and returns its text. Pages and
// paragraphs are joined with newlines. A file that parses but holds no text
// yields an empty string and no error. An unreadable PDF yields
// PDFUnavailableMessage so callers can surface it to the user.
func (p *Processor) ExtractText(ctx context.Context, filename string, r io.Reader) (string, error) {
	contentType := DetermineContentType(filename)
	if contentType == ContentTypeUnsupported {
		return "", ErrUnsupportedFileType
	}

	data, err := stream.ReadLimited(r, p.maxSize)
	if errors.Is(err, stream.ErrLimitExceeded) {
		return "", ErrFileTooLarge
	}
	if err != nil {
		return "", err
	}

	var (
		text  string
		parts []string
	)
	src := bytes.NewReader(data)

	switch contentType {
	case ContentTypePDF:
		text, err = p.pdfExtractor.Extract(ctx, data)
		if err != nil && !errors.Is(err, extractor.ErrNoText) && ctx.Err() == nil {
			p.logger.Error("pdf extraction failed", "file", filename, "err", err)
			return PDFUnavailableMessage, nil
		}
	case ContentTypeWord:
		text, err = p.wordExtractor.Extract(ctx, data)
	case ContentTypeHTML:
		parts, err = p.plainExtractor.ExtractHTML(ctx, src)
	case ContentTypeImage:
		parts, err = p.ocrProcessor.Process(ctx, src)
	case ContentTypeText:
		parts, err = p.plainExtractor.Extract(ctx, src)
	}

	if errors.Is(err, extractor.ErrNoText) || errors.Is(err, ocr.ErrNoText) {
		p.logger.Info("document has no text", "file", filename)
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if parts != nil {
		text = strings.Join(parts, "\n")
	}
	p.logger.Debug("extracted document text",
		"file", filename,
		"content_type", string(contentType),
		"bytes", len(data),
		"chars", len(text))
	return text, nil
}

// DetermineContentType maps a filename extension to a supported content type.
func DetermineContentType(filename string) ContentType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return ContentTypePDF
	case ".docx":
		return ContentTypeWord
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff":
		return ContentTypeImage
	case ".txt", ".md":
		return ContentTypeText
	case ".html", ".htm":
		return ContentTypeHTML
	default:
		return ContentTypeUnsupported
	}
}
