package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stubLoader struct {
	text string
	err  error
}

func (s stubLoader) Load(ctx context.Context, url string) (string, error) {
	return s.text, s.err
}

type stubExtractor struct {
	clauses []string
	err     error
}

func (s stubExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	return s.clauses, s.err
}

type echoAnswerer struct{}

func (echoAnswerer) Answer(ctx context.Context, question string, matches []ClauseMatch) (string, string) {
	if len(matches) == 0 {
		return "no matches for " + question, "Analysis completed"
	}
	return question + " -> " + matches[0].Clause, "Analysis completed"
}

type capturingRetriever struct {
	built     []string
	searchErr error
}

func (r *capturingRetriever) Build(ctx context.Context, clauses []string) error {
	r.built = clauses
	return nil
}

func (r *capturingRetriever) Search(ctx context.Context, question string, topK int) ([]ClauseMatch, error) {
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	return []ClauseMatch{{Clause: r.built[0], Similarity: 1, Rank: 1}}, nil
}

func newTestService(loader Loader, extractor Extractor, engine Answerer, factory func() (Retriever, error)) *Service {
	s := NewService(loader, extractor, engine, factory)
	s.pacer = rate.NewLimiter(rate.Inf, 1)
	return s
}

func lexicalFactory() (Retriever, error) {
	return NewRetriever("lexical", nil)
}

const sampleDoc = "Clause A covers fire damage in the insured building. Clause B excludes flood damage from all coverage."

func TestService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	questions := []string{
		"Does the policy cover flood damage?",
		"What does Clause A cover?",
		"When are premiums due?",
	}

	t.Run("always returns one answer per question", func(t *testing.T) {
		t.Parallel()

		s := newTestService(
			stubLoader{text: sampleDoc},
			stubExtractor{clauses: []string{"Clause A covers fire damage", "Clause B excludes flood damage"}},
			echoAnswerer{},
			lexicalFactory,
		)

		resp := s.Run(ctx, QueryRequest{Documents: "https://example.com/policy.pdf", Questions: questions})
		require.Len(t, resp.Answers, len(questions))
		for i, a := range resp.Answers {
			assert.True(t, strings.HasPrefix(a, questions[i]), "answer %d aligned with its question", i)
		}
	})

	t.Run("load failure fills every slot with the same error answer", func(t *testing.T) {
		t.Parallel()

		s := newTestService(
			stubLoader{err: Errorf(ELOAD, "load document from https://example.com/policy.pdf: timeout")},
			stubExtractor{},
			echoAnswerer{},
			lexicalFactory,
		)

		resp := s.Run(ctx, QueryRequest{Documents: "https://example.com/policy.pdf", Questions: questions})
		require.Len(t, resp.Answers, len(questions))
		for _, a := range resp.Answers {
			assert.Equal(t, resp.Answers[0], a)
			assert.True(t, strings.HasPrefix(a, "Error:"))
			assert.Contains(t, a, "https://example.com/policy.pdf")
		}
	})

	t.Run("rejects documents that are too short", func(t *testing.T) {
		t.Parallel()

		s := newTestService(stubLoader{text: "tiny"}, stubExtractor{}, echoAnswerer{}, lexicalFactory)

		resp := s.Run(ctx, QueryRequest{Questions: []string{"q"}})
		require.Len(t, resp.Answers, 1)
		assert.Equal(t, "Error: document appears to be empty or too short", resp.Answers[0])
	})

	t.Run("extractor failure triggers the sentence fallback", func(t *testing.T) {
		t.Parallel()

		retriever := &capturingRetriever{}
		s := newTestService(
			stubLoader{text: sampleDoc},
			stubExtractor{err: errors.New("model exploded")},
			echoAnswerer{},
			func() (Retriever, error) { return retriever, nil },
		)

		resp := s.Run(ctx, QueryRequest{Questions: []string{"q"}})
		require.Len(t, resp.Answers, 1)
		require.Len(t, retriever.built, 2, "both document sentences pass the fallback filter")
		assert.Contains(t, retriever.built[0], "Clause A")
	})

	t.Run("zero clauses everywhere yields a uniform error", func(t *testing.T) {
		t.Parallel()

		// Long enough to pass the length check, but no sentence fragment
		// exceeds the fallback minimum.
		doc := strings.Repeat("Short bit. ", 10)
		s := newTestService(stubLoader{text: doc}, stubExtractor{}, echoAnswerer{}, lexicalFactory)

		resp := s.Run(ctx, QueryRequest{Questions: questions})
		require.Len(t, resp.Answers, len(questions))
		for _, a := range resp.Answers {
			assert.Equal(t, "Error: no valid clauses extracted from the document", a)
		}
	})

	t.Run("search failure degrades to an error-text match for that question", func(t *testing.T) {
		t.Parallel()

		retriever := &capturingRetriever{searchErr: Errorf(EINDEXNOTBUILT, "retriever index not built")}
		s := newTestService(
			stubLoader{text: sampleDoc},
			stubExtractor{clauses: []string{"some clause"}},
			echoAnswerer{},
			func() (Retriever, error) { return retriever, nil },
		)

		resp := s.Run(ctx, QueryRequest{Questions: []string{"q1", "q2"}})
		require.Len(t, resp.Answers, 2)
		for _, a := range resp.Answers {
			assert.Contains(t, a, "Error:")
		}
	})

	t.Run("each request gets a fresh retriever", func(t *testing.T) {
		t.Parallel()

		built := 0
		s := newTestService(
			stubLoader{text: sampleDoc},
			stubExtractor{clauses: []string{"some clause"}},
			echoAnswerer{},
			func() (Retriever, error) {
				built++
				return NewRetriever("lexical", nil)
			},
		)

		s.Run(ctx, QueryRequest{Questions: []string{"q"}})
		s.Run(ctx, QueryRequest{Questions: []string{"q"}})
		assert.Equal(t, 2, built)
	})

	t.Run("retriever factory failure yields uniform errors", func(t *testing.T) {
		t.Parallel()

		s := newTestService(
			stubLoader{text: sampleDoc},
			stubExtractor{clauses: []string{"some clause"}},
			echoAnswerer{},
			func() (Retriever, error) { return nil, fmt.Errorf("bad strategy") },
		)

		resp := s.Run(ctx, QueryRequest{Questions: []string{"a", "b"}})
		require.Len(t, resp.Answers, 2)
		assert.Equal(t, "Error: bad strategy", resp.Answers[0])
	})
}
