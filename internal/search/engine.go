package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/corpus"
	"github.com/sanjeevkumarraob/ipc-search-service/pkg/vectorstore"
)

// Ranking and threshold constants.
const (
	DefaultLimit = 3

	semanticCandidates     = 5
	shortQueryWords        = 5
	thresholdAfterExact    = 0.35
	thresholdDefault       = 0.25
	highConfidenceScore    = 0.45
	fuzzyConfidence        = 0.2
	fuzzyMaxResults        = 2
	fuzzyMinKeywordRunes   = 5
	exactMatchConfidence   = 1.0
	confidenceRoundingUnit = 100
)

// MatchKind classifies how a section was matched.
type MatchKind string

const (
	MatchExact          MatchKind = "Exact"
	MatchHighConfidence MatchKind = "High Confidence"
	MatchSuggestion     MatchKind = "Suggestion"
)

// Match is one ranked section for a query.
type Match struct {
	SectionID   string    `json:"matched_section"`
	Title       string    `json:"section_title"`
	Description string    `json:"legal_description"`
	Explanation string    `json:"simplified_explanation"`
	Confidence  float64   `json:"confidence"`
	Kind        MatchKind `json:"type"`
}

// StepStatus is what happened to one matching strategy during a search.
type StepStatus int

const (
	StepNotAttempted StepStatus = iota
	StepFound
	StepEmpty
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepNotAttempted:
		return "not-attempted"
	case StepFound:
		return "found"
	case StepEmpty:
		return "empty"
	case StepFailed:
		return "failed"
	}
	return fmt.Sprintf("StepStatus(%d)", int(s))
}

// StepOutcome records one strategy's contribution to a Result.
type StepOutcome struct {
	Status StepStatus
	// Reason explains why a step was not attempted.
	Reason string
	// Err is set when Status is StepFailed.
	Err   error
	Added int
}

// Result is the ranked matches for a query plus a trace of each strategy.
type Result struct {
	Query    string
	Matches  []Match
	Exact    StepOutcome
	Semantic StepOutcome
	Fuzzy    StepOutcome
}

// Engine runs the hybrid exact / semantic / keyword lookup. It holds only
// read-only state and is safe for concurrent use.
type Engine struct {
	corpus   *corpus.Corpus
	store    *vectorstore.Store
	embedder Embedder
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSemanticIndex enables the semantic step. store must be index-aligned with
// the engine's corpus and built with embedder's model.
func WithSemanticIndex(store *vectorstore.Store, embedder Embedder) EngineOption {
	return func(e *Engine) {
		e.store = store
		e.embedder = embedder
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// NewEngine creates an engine over c. A nil corpus behaves as an empty one.
func NewEngine(c *corpus.Corpus, opts ...EngineOption) *Engine {
	if c == nil {
		c = corpus.Empty()
	}
	e := &Engine{
		corpus: c,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "match-engine")

	if e.store != nil && e.store.Len() != c.Len() {
		e.logger.Error("semantic index does not match corpus, semantic search disabled",
			"vectors", e.store.Len(), "corpus", c.Len())
		e.store = nil
	}
	return e
}

// CorpusSize returns the number of sections the engine searches.
func (e *Engine) CorpusSize() int {
	return e.corpus.Len()
}

// SemanticEnabled reports whether the semantic step can run.
func (e *Engine) SemanticEnabled() bool {
	return e.embedder != nil && e.store.Len() > 0
}

// Lookup returns the section with the given id, ignoring case.
func (e *Engine) Lookup(id string) (corpus.Entry, bool) {
	return e.corpus.Lookup(id)
}

// Search returns at most limit matches for query. A non-positive limit means DefaultLimit.
func (e *Engine) Search(ctx context.Context, query string, limit int) []Match {
	return e.Analyze(ctx, query, limit).Matches
}

// Analyze runs every applicable strategy and returns ranked matches together
// with the outcome of each strategy. It never fails: a strategy that errors
// contributes nothing and the next one runs.
func (e *Engine) Analyze(ctx context.Context, query string, limit int) *Result {
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = DefaultLimit
	}
	res := &Result{Query: query, Matches: []Match{}}

	skipAll := func(reason string) *Result {
		res.Exact = StepOutcome{Status: StepNotAttempted, Reason: reason}
		res.Semantic = res.Exact
		res.Fuzzy = res.Exact
		return res
	}
	if e.corpus.Len() == 0 {
		return skipAll("empty corpus")
	}
	if query == "" {
		return skipAll("empty query")
	}

	numeric := IsNumericQuery(query)
	var matches []Match

	res.Exact = e.runStep("exact", &matches, func() ([]Match, error) {
		return e.exactMatch(query), nil
	})
	exactFound := res.Exact.Status == StepFound

	switch {
	case exactFound && len(strings.Fields(query)) < shortQueryWords:
		res.Semantic = StepOutcome{Status: StepNotAttempted, Reason: "short query with exact match"}
	case numeric && !exactFound:
		res.Semantic = StepOutcome{Status: StepNotAttempted, Reason: "numeric query without exact match"}
	case !e.SemanticEnabled():
		res.Semantic = StepOutcome{Status: StepNotAttempted, Reason: "semantic index unavailable"}
	default:
		res.Semantic = e.runStep("semantic", &matches, func() ([]Match, error) {
			return e.semanticMatch(ctx, query, exactFound, matches)
		})
	}

	switch {
	case len(matches) > 0:
		res.Fuzzy = StepOutcome{Status: StepNotAttempted, Reason: "stronger strategy matched"}
	case numeric:
		res.Fuzzy = StepOutcome{Status: StepNotAttempted, Reason: "numeric query"}
	default:
		res.Fuzzy = e.runStep("fuzzy", &matches, func() ([]Match, error) {
			return e.keywordMatch(query), nil
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		ei, ej := matches[i].Kind == MatchExact, matches[j].Kind == MatchExact
		if ei != ej {
			return ei
		}
		return matches[i].Confidence > matches[j].Confidence
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	if matches != nil {
		res.Matches = matches
	}

	e.logger.Debug("query analyzed",
		"matches", len(res.Matches),
		"exact", res.Exact.Status,
		"semantic", res.Semantic.Status,
		"fuzzy", res.Fuzzy.Status)
	return res
}

// runStep executes one strategy, appending what it finds to matches. Errors and
// panics are reported in the outcome and never escape.
func (e *Engine) runStep(name string, matches *[]Match, step func() ([]Match, error)) (out StepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("match step panicked", "step", name, "panic", r, "stack", string(debug.Stack()))
			out = StepOutcome{Status: StepFailed, Err: fmt.Errorf("%s step panicked: %v", name, r)}
		}
	}()

	found, err := step()
	if err != nil {
		e.logger.Warn("match step failed", "step", name, "err", err)
		return StepOutcome{Status: StepFailed, Err: err}
	}
	if len(found) == 0 {
		return StepOutcome{Status: StepEmpty}
	}
	*matches = append(*matches, found...)
	return StepOutcome{Status: StepFound, Added: len(found)}
}

func (e *Engine) exactMatch(query string) []Match {
	id, ok := ExtractSectionID(query)
	if !ok {
		return nil
	}
	entry, ok := e.corpus.Lookup(id)
	if !ok {
		return nil
	}
	return []Match{{
		SectionID:   entry.SectionID,
		Title:       entry.Title,
		Description: entry.Description,
		Explanation: fmt.Sprintf("This section deals with %s.", entry.Title),
		Confidence:  exactMatchConfidence,
		Kind:        MatchExact,
	}}
}

func (e *Engine) semanticMatch(ctx context.Context, query string, exactFound bool, existing []Match) ([]Match, error) {
	qv, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := e.store.Search(qv, semanticCandidates)
	if err != nil {
		return nil, err
	}

	threshold := thresholdDefault
	if exactFound {
		threshold = thresholdAfterExact
	}

	seen := make(map[string]bool, len(existing)+len(hits))
	for _, m := range existing {
		seen[m.SectionID] = true
	}

	var found []Match
	for _, hit := range hits {
		if hit.Score < threshold {
			continue
		}
		entry := e.corpus.At(hit.Index)
		if seen[entry.SectionID] {
			continue
		}
		seen[entry.SectionID] = true

		kind := MatchSuggestion
		if hit.Score > highConfidenceScore {
			kind = MatchHighConfidence
		}
		found = append(found, Match{
			SectionID:   entry.SectionID,
			Title:       entry.Title,
			Description: entry.Description,
			Explanation: fmt.Sprintf("Relevant to: %s", entry.Title),
			Confidence:  roundConfidence(hit.Score),
			Kind:        kind,
		})
	}
	return found, nil
}

// keywordMatch returns the first sections, in corpus order, whose title contains
// any query word longer than four characters.
func (e *Engine) keywordMatch(query string) []Match {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) >= fuzzyMinKeywordRunes {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		return nil
	}

	var found []Match
	for _, entry := range e.corpus.Entries() {
		title := strings.ToLower(entry.Title)
		for _, k := range keywords {
			if !strings.Contains(title, k) {
				continue
			}
			found = append(found, Match{
				SectionID:   entry.SectionID,
				Title:       entry.Title,
				Description: entry.Description,
				Explanation: fmt.Sprintf("Found via keyword match: %s", entry.Title),
				Confidence:  fuzzyConfidence,
				Kind:        MatchSuggestion,
			})
			break
		}
		if len(found) >= fuzzyMaxResults {
			break
		}
	}
	return found
}

func roundConfidence(score float64) float64 {
	return math.Round(score*confidenceRoundingUnit) / confidenceRoundingUnit
}
