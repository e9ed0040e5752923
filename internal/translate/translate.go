package translate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyTranslation is returned when the model answers with no text.
var ErrEmptyTranslation = errors.New("translation returned no text")

// Translator turns text in any language into English.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Noop returns its input unchanged.
type Noop struct{}

// Translate returns text as is.
func (Noop) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// ContainsDevanagari reports whether text has any rune in the Devanagari block.
func ContainsDevanagari(text string) bool {
	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F {
			return true
		}
	}
	return false
}

// Config configures an LLM translator against an OpenAI-compatible chat API.
type Config struct {
	Host    string
	Model   string
	Token   string
	Timeout time.Duration
}

// LLMTranslator asks a chat model for an English rendering of the input.
type LLMTranslator struct {
	client  llms.Model
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an LLMTranslator.
type Option func(*LLMTranslator)

// WithLogger sets the translator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *LLMTranslator) {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
	}
}

// WithTimeout bounds each translation call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(t *LLMTranslator) {
		t.timeout = d
	}
}

// New creates a translator backed by an OpenAI-compatible chat endpoint.
func New(cfg Config, opts ...Option) (*LLMTranslator, error) {
	token := cfg.Token
	if token == "" {
		// local servers like Ollama accept any token
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(client, append([]Option{WithTimeout(cfg.Timeout)}, opts...)...), nil
}

// NewWithModel creates a translator around an existing chat model.
func NewWithModel(client llms.Model, opts ...Option) *LLMTranslator {
	t := &LLMTranslator{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "translator")
	return t
}

const systemPrompt = `You translate legal complaints and queries into plain English.
Reply with the English translation only. Do not add notes, quotes or explanations.
Keep section numbers and names unchanged.`

// Translate returns the English translation of text.
func (t *LLMTranslator) Translate(ctx context.Context, text string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}
	resp, err := t.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyTranslation
	}

	out := strings.TrimSpace(resp.Choices[0].Content)
	out = strings.Trim(out, "\"")
	if out == "" {
		return "", ErrEmptyTranslation
	}
	t.logger.Debug("translated query", "input_length", len(text), "output_length", len(out))
	return out, nil
}

// IfNeeded translates text only when it contains Devanagari characters. Any
// translation failure is logged and the original text is returned.
func IfNeeded(ctx context.Context, tr Translator, text string, logger *slog.Logger) string {
	if tr == nil || !ContainsDevanagari(text) {
		return text
	}
	if logger == nil {
		logger = slog.Default()
	}
	out, err := tr.Translate(ctx, text)
	if err != nil {
		logger.Warn("translation failed, using original query", "err", err)
		return text
	}
	return out
}
