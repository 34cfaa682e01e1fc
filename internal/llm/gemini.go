package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/josinaldojr/docretrieve/internal/qa"
	"google.golang.org/genai"
)

const (
	embeddingModel = "models/text-embedding-004"
	chatModel      = "gemini-2.5-flash"
	embedDim       = 768

	// Fixed generation parameters: bounded output, low temperature for
	// deterministic answers.
	maxOutputTokens = 600
	temperature     = 0.1
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: c}, nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	clean := normalizeWhitespace(text)
	if clean == "" {
		return nil, fmt.Errorf("empty text for embedding")
	}

	resp, err := g.client.Models.EmbedContent(
		ctx,
		embeddingModel,
		genai.Text(clean),
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(embedDim)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed error: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	values := resp.Embeddings[0].Values
	if len(values) != embedDim {
		return nil, fmt.Errorf("unexpected embedding size %d (expected %d)", len(values), embedDim)
	}

	out := make([]float32, embedDim)
	copy(out, values)
	return out, nil
}

// Complete issues a single chat completion. System messages become the
// system instruction; user messages are joined into the content.
func (g *GeminiClient) Complete(ctx context.Context, messages []qa.Message) (string, error) {
	var system, user []string
	for _, m := range messages {
		switch m.Role {
		case qa.RoleSystem:
			system = append(system, m.Content)
		default:
			user = append(user, m.Content)
		}
	}
	if len(user) == 0 {
		return "", fmt.Errorf("no user message provided")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: maxOutputTokens,
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.Text(strings.Join(system, "\n"))[0]
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		chatModel,
		genai.Text(strings.Join(user, "\n\n")),
		cfg,
	)
	if err != nil {
		return "", fmt.Errorf("gemini generateContent error: %w", err)
	}

	if resp == nil {
		return "", fmt.Errorf("empty response from gemini")
	}

	txt := strings.TrimSpace(resp.Text())
	if txt == "" {
		return "", fmt.Errorf("model returned empty text")
	}

	return txt, nil
}

// -------- helpers --------

func normalizeWhitespace(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			if !space {
				b.WriteRune(' ')
				space = true
			}
		} else {
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}

var _ qa.EmbeddingsClient = (*GeminiClient)(nil)
var _ qa.CompletionClient = (*GeminiClient)(nil)
