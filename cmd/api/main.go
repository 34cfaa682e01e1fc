package main

import (
	"context"
	"log"
	"net/http"

	"github.com/josinaldojr/docretrieve/internal/config"
	apphttp "github.com/josinaldojr/docretrieve/internal/http"
	"github.com/josinaldojr/docretrieve/internal/llm"
	"github.com/josinaldojr/docretrieve/internal/qa"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	geminiClient, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("failed to init Gemini client: %v", err)
	}

	limiter := qa.NewRateLimiter(qa.DefaultMaxCalls, qa.DefaultTimeWindow)
	resilient := qa.NewResilientClient(geminiClient, limiter)

	service := qa.NewService(
		qa.NewDocumentLoader(),
		qa.NewClauseExtractor(resilient),
		qa.NewAnswerEngine(resilient),
		func() (qa.Retriever, error) {
			return qa.NewRetriever(cfg.RetrieverStrategy, geminiClient)
		},
	)

	h := apphttp.NewHandler(service)
	router := apphttp.NewRouter(h, cfg.APIKey)
	handler := apphttp.CORSMiddleware(router)

	addr := ":" + cfg.Port
	log.Printf("API listening on %s (retriever=%s)", addr, cfg.RetrieverStrategy)
	log.Fatal(http.ListenAndServe(addr, handler))
}
