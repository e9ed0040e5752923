package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/corpus"
	"github.com/sanjeevkumarraob/ipc-search-service/pkg/vectorstore"
)

// stubEmbedder returns fixed vectors per text and zero vectors otherwise.
type stubEmbedder struct {
	vectors map[string][]float32
	dims    int
	err     error
	panics  bool
	calls   atomic.Int32
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.panics {
		panic("model crashed")
	}
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, s.dims), nil
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) ModelID() string { return "stub" }

func testCorpus() *corpus.Corpus {
	return corpus.New([]corpus.Entry{
		{SectionID: "302", Title: "Punishment for murder", Description: "Whoever commits murder shall be punished with death."},
		{SectionID: "378", Title: "Theft", Description: "Dishonestly taking movable property out of possession."},
		{SectionID: "379", Title: "Punishment for theft", Description: "Imprisonment up to three years."},
		{SectionID: "381", Title: "Theft by clerk or servant", Description: "Theft of property in possession of master."},
		{SectionID: "420", Title: "Cheating and dishonestly inducing delivery of property", Description: "Cheating punishable with seven years."},
		{SectionID: "498A", Title: "Husband or relative of husband subjecting a woman to cruelty", Description: "Cruelty to a married woman."},
	})
}

// Vectors are index-aligned with testCorpus.
func testStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	s, err := vectorstore.NewStore([][]float32{
		{1, 0, 0, 0},
		{0, 0.8, 0.6, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 0},
	})
	require.NoError(t, err)
	return s
}

const (
	queryMotorbike = "stole a motorbike at night"
	queryVague     = "someone hurt me and took money"
	queryExactLong = "section 302 he killed his neighbour with a knife"
)

func newTestEngine(t *testing.T) (*Engine, *stubEmbedder) {
	t.Helper()
	emb := &stubEmbedder{
		dims: 4,
		vectors: map[string][]float32{
			queryMotorbike: {0, 0.5, 0, 0.3},
			queryVague:     {0.4, 0, 0.3, 0.866},
			queryExactLong: {0.8, 0, 0.4, 0.447},
		},
	}
	return NewEngine(testCorpus(), WithSemanticIndex(testStore(t), emb)), emb
}

func TestExactMatch(t *testing.T) {
	engine, emb := newTestEngine(t)

	for _, q := range []string{"302", "section 302", "Sec 302", "IPC 302", "ipc section 302", "302 murder"} {
		t.Run(q, func(t *testing.T) {
			res := engine.Analyze(context.Background(), q, 3)
			require.NotEmpty(t, res.Matches)

			top := res.Matches[0]
			assert.Equal(t, "302", top.SectionID)
			assert.Equal(t, MatchExact, top.Kind)
			assert.Equal(t, 1.0, top.Confidence)
			assert.Equal(t, "This section deals with Punishment for murder.", top.Explanation)
			assert.Equal(t, StepFound, res.Exact.Status)
			assert.Equal(t, StepNotAttempted, res.Semantic.Status)
			assert.Equal(t, StepNotAttempted, res.Fuzzy.Status)
		})
	}
	assert.Zero(t, emb.calls.Load(), "short exact queries must not be embedded")
}

func TestExactMatchAlphabeticSuffix(t *testing.T) {
	engine, _ := newTestEngine(t)

	matches := engine.Search(context.Background(), "ipc 498a", 3)
	require.Len(t, matches, 1)
	assert.Equal(t, "498A", matches[0].SectionID)
	assert.Equal(t, MatchExact, matches[0].Kind)
}

func TestNumericQueryWithoutSection(t *testing.T) {
	engine, emb := newTestEngine(t)

	res := engine.Analyze(context.Background(), "9999", 3)

	assert.Empty(t, res.Matches)
	assert.NotNil(t, res.Matches)
	assert.Equal(t, StepEmpty, res.Exact.Status)
	assert.Equal(t, StepNotAttempted, res.Semantic.Status)
	assert.Equal(t, StepNotAttempted, res.Fuzzy.Status)
	assert.Zero(t, emb.calls.Load())
}

func TestSemanticMatch(t *testing.T) {
	engine, _ := newTestEngine(t)

	res := engine.Analyze(context.Background(), queryMotorbike, 3)

	assert.Equal(t, StepEmpty, res.Exact.Status)
	assert.Equal(t, StepFound, res.Semantic.Status)
	assert.Equal(t, StepNotAttempted, res.Fuzzy.Status)
	require.Len(t, res.Matches, 3)

	assert.Equal(t, []string{"379", "378", "420"}, sectionIDs(res.Matches))
	assert.Equal(t, []float64{0.86, 0.69, 0.51}, confidences(res.Matches))
	for _, m := range res.Matches {
		assert.Equal(t, MatchHighConfidence, m.Kind)
		assert.Equal(t, "Relevant to: "+m.Title, m.Explanation)
	}
}

func TestSemanticThresholdAndClassification(t *testing.T) {
	engine, _ := newTestEngine(t)

	matches := engine.Search(context.Background(), queryVague, 5)

	require.Len(t, matches, 3)
	assert.Equal(t, []string{"420", "302", "498A"}, sectionIDs(matches))
	assert.Equal(t, []float64{0.87, 0.4, 0.3}, confidences(matches))
	assert.Equal(t, MatchHighConfidence, matches[0].Kind)
	assert.Equal(t, MatchSuggestion, matches[1].Kind)
	assert.Equal(t, MatchSuggestion, matches[2].Kind)
}

func TestExactMatchWithLongQueryRaisesThreshold(t *testing.T) {
	engine, emb := newTestEngine(t)

	res := engine.Analyze(context.Background(), queryExactLong, 5)

	assert.Equal(t, StepFound, res.Exact.Status)
	assert.Equal(t, StepFound, res.Semantic.Status)
	assert.Equal(t, int32(1), emb.calls.Load())

	// 302 is already the exact hit, 378 (0.24) misses the raised 0.35 bar,
	// 420 (0.447) and 498A (0.4) clear it as suggestions.
	assert.Equal(t, []string{"302", "420", "498A"}, sectionIDs(res.Matches))
	assert.Equal(t, []float64{1.0, 0.45, 0.4}, confidences(res.Matches))
	assert.Equal(t, MatchExact, res.Matches[0].Kind)
	assert.Equal(t, MatchSuggestion, res.Matches[1].Kind)
}

func TestKeywordFallback(t *testing.T) {
	t.Run("semantic below threshold", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		res := engine.Analyze(context.Background(), "theft", 3)

		assert.Equal(t, StepEmpty, res.Semantic.Status)
		assert.Equal(t, StepFound, res.Fuzzy.Status)
		// three titles contain "theft"; only the first two in corpus order are kept
		assert.Equal(t, []string{"378", "379"}, sectionIDs(res.Matches))
		for _, m := range res.Matches {
			assert.Equal(t, MatchSuggestion, m.Kind)
			assert.Equal(t, 0.2, m.Confidence)
			assert.Equal(t, "Found via keyword match: "+m.Title, m.Explanation)
		}
	})

	t.Run("embedder error", func(t *testing.T) {
		emb := &stubEmbedder{dims: 4, err: errors.New("connection refused")}
		engine := NewEngine(testCorpus(), WithSemanticIndex(testStore(t), emb))

		res := engine.Analyze(context.Background(), "someone was cheating me", 3)

		assert.Equal(t, StepFailed, res.Semantic.Status)
		assert.ErrorContains(t, res.Semantic.Err, "connection refused")
		assert.Equal(t, StepFound, res.Fuzzy.Status)
		assert.Equal(t, []string{"420"}, sectionIDs(res.Matches))
	})

	t.Run("embedder panic", func(t *testing.T) {
		emb := &stubEmbedder{dims: 4, panics: true}
		engine := NewEngine(testCorpus(), WithSemanticIndex(testStore(t), emb))

		var res *Result
		require.NotPanics(t, func() {
			res = engine.Analyze(context.Background(), "someone was cheating me", 3)
		})
		assert.Equal(t, StepFailed, res.Semantic.Status)
		assert.Equal(t, []string{"420"}, sectionIDs(res.Matches))
	})

	t.Run("no semantic index", func(t *testing.T) {
		engine := NewEngine(testCorpus())

		res := engine.Analyze(context.Background(), "cruelty by the husband", 3)

		assert.False(t, engine.SemanticEnabled())
		assert.Equal(t, StepNotAttempted, res.Semantic.Status)
		assert.Equal(t, []string{"498A"}, sectionIDs(res.Matches))
	})

	t.Run("short words are ignored", func(t *testing.T) {
		engine := NewEngine(testCorpus())

		assert.Empty(t, engine.Search(context.Background(), "the for by", 3))
	})
}

func TestMismatchedIndexDisablesSemantic(t *testing.T) {
	small, err := vectorstore.NewStore([][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)
	emb := &stubEmbedder{dims: 4}

	engine := NewEngine(testCorpus(), WithSemanticIndex(small, emb))

	assert.False(t, engine.SemanticEnabled())
	assert.Equal(t, StepNotAttempted, engine.Analyze(context.Background(), queryMotorbike, 3).Semantic.Status)
	assert.Zero(t, emb.calls.Load())
}

func TestEmptyCorpus(t *testing.T) {
	for _, engine := range []*Engine{NewEngine(nil), NewEngine(corpus.Empty())} {
		res := engine.Analyze(context.Background(), "section 302", 3)
		assert.Empty(t, res.Matches)
		assert.Equal(t, StepNotAttempted, res.Exact.Status)
		assert.Equal(t, "empty corpus", res.Exact.Reason)
		assert.Zero(t, engine.CorpusSize())
	}
}

func TestEmptyQuery(t *testing.T) {
	engine, emb := newTestEngine(t)

	assert.Empty(t, engine.Search(context.Background(), "   ", 3))
	assert.Zero(t, emb.calls.Load())
}

func TestLimit(t *testing.T) {
	engine, _ := newTestEngine(t)

	assert.Len(t, engine.Search(context.Background(), queryMotorbike, 1), 1)
	assert.Len(t, engine.Search(context.Background(), queryMotorbike, 0), DefaultLimit)
	assert.Len(t, engine.Search(context.Background(), queryVague, -1), DefaultLimit)
}

func TestLookup(t *testing.T) {
	engine, _ := newTestEngine(t)

	e, ok := engine.Lookup("498a")
	require.True(t, ok)
	assert.Equal(t, "498A", e.SectionID)

	_, ok = engine.Lookup("1")
	assert.False(t, ok)
}

func TestResultProperties(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	queries := []string{
		"302", "9999", "section 420", queryMotorbike, queryVague, queryExactLong,
		"theft", "someone was cheating me", "", "ipc 498A cruelty",
	}
	for _, q := range queries {
		for _, limit := range []int{1, 2, 3, 5} {
			first := engine.Search(ctx, q, limit)

			assert.LessOrEqual(t, len(first), limit, "limit for %q", q)

			seen := map[string]bool{}
			for i, m := range first {
				assert.False(t, seen[m.SectionID], "duplicate %s for %q", m.SectionID, q)
				seen[m.SectionID] = true

				assert.GreaterOrEqual(t, m.Confidence, 0.0)
				assert.LessOrEqual(t, m.Confidence, 1.0)

				if i == 0 {
					continue
				}
				prev := first[i-1]
				if prev.Kind != MatchExact {
					assert.NotEqual(t, MatchExact, m.Kind, "exact after non-exact for %q", q)
				}
				if (prev.Kind == MatchExact) == (m.Kind == MatchExact) {
					assert.GreaterOrEqual(t, prev.Confidence, m.Confidence, "ordering for %q", q)
				}
			}

			assert.Equal(t, first, engine.Search(ctx, q, limit), "idempotence for %q", q)
		}
	}
}

func TestStepStatusString(t *testing.T) {
	assert.Equal(t, "found", StepFound.String())
	assert.Equal(t, "not-attempted", StepNotAttempted.String())
	assert.Equal(t, "StepStatus(9)", StepStatus(9).String())
}

func sectionIDs(matches []Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.SectionID
	}
	return ids
}

func confidences(matches []Match) []float64 {
	out := make([]float64, len(matches))
	for i, m := range matches {
		out[i] = m.Confidence
	}
	return out
}
