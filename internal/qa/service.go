package qa

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// Documents shorter than this after trimming are rejected outright.
	minDocumentChars = 50
	// Spacing between per-question model calls within a request.
	questionSpacing = 3 * time.Second
	emergencyMinLen = 20
	emergencyCap    = 10
)

// Loader produces plain text for a document URL.
type Loader interface {
	Load(ctx context.Context, url string) (string, error)
}

// Extractor produces clause candidates from document text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// Answerer produces (answer, rationale) for a question and its matches.
type Answerer interface {
	Answer(ctx context.Context, question string, matches []ClauseMatch) (string, string)
}

var (
	_ Loader    = (*DocumentLoader)(nil)
	_ Extractor = (*ClauseExtractor)(nil)
	_ Answerer  = (*AnswerEngine)(nil)
)

// Service runs the whole pipeline for one request: load, extract clauses,
// index, then answer each question in order. The retriever is built fresh
// per request via the factory so concurrent requests never share an index.
type Service struct {
	loader       Loader
	extractor    Extractor
	engine       Answerer
	newRetriever func() (Retriever, error)
	// Token-bucket pacer replacing fixed sleeps between questions. Shared
	// across requests, which also spaces concurrent callers.
	pacer *rate.Limiter
}

func NewService(loader Loader, extractor Extractor, engine Answerer, newRetriever func() (Retriever, error)) *Service {
	return &Service{
		loader:       loader,
		extractor:    extractor,
		engine:       engine,
		newRetriever: newRetriever,
		pacer:        rate.NewLimiter(rate.Every(questionSpacing), 1),
	}
}

// Run answers every question in req. The response always contains exactly
// len(req.Questions) answers; failures fill slots with error text instead of
// propagating.
func (s *Service) Run(ctx context.Context, req QueryRequest) QueryResponse {
	id := uuid.NewString()[:8]
	log.Printf("[%s] processing %d question(s) for %s", id, len(req.Questions), req.Documents)

	text, err := s.loader.Load(ctx, req.Documents)
	if err != nil {
		log.Printf("[%s] document load failed: %v", id, err)
		return s.uniform(req, fmt.Sprintf("Error: %v", err))
	}
	if len(strings.TrimSpace(text)) < minDocumentChars {
		return s.uniform(req, "Error: document appears to be empty or too short")
	}

	clauses, err := s.extractor.Extract(ctx, text)
	if err != nil || len(clauses) == 0 {
		if err != nil {
			log.Printf("[%s] clause extraction failed, using fallback: %v", id, err)
		}
		clauses = splitSentences(text, emergencyMinLen, emergencyCap)
	}
	if len(clauses) == 0 {
		return s.uniform(req, "Error: no valid clauses extracted from the document")
	}
	log.Printf("[%s] extracted %d clause(s)", id, len(clauses))

	retriever, err := s.newRetriever()
	if err == nil {
		err = retriever.Build(ctx, clauses)
	}
	if err != nil {
		log.Printf("[%s] retriever build failed: %v", id, err)
		return s.uniform(req, fmt.Sprintf("Error: %v", err))
	}

	answers := make([]string, len(req.Questions))
	for i, q := range req.Questions {
		if i > 0 {
			if werr := s.pacer.Wait(ctx); werr != nil {
				answers[i] = fmt.Sprintf("Unable to evaluate: %v", werr)
				continue
			}
		}

		matches, serr := retriever.Search(ctx, q, DefaultTopK)
		if serr != nil {
			// Search failure degrades to a single error-text match so the
			// question still gets an answer slot.
			matches = []ClauseMatch{{Clause: fmt.Sprintf("Error: %v", serr), Rank: 1}}
		}

		answer, rationale := s.engine.Answer(ctx, q, matches)
		answers[i] = answer
		log.Printf("[%s] question %d answered (%s)", id, i+1, rationale)
	}

	return QueryResponse{Answers: answers}
}

func (s *Service) uniform(req QueryRequest, msg string) QueryResponse {
	answers := make([]string, len(req.Questions))
	for i := range answers {
		answers[i] = msg
	}
	return QueryResponse{Answers: answers}
}
