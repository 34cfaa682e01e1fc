package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
)

const (
	maxChunkSize = 1500
	chunkOverlap = 100
	// Only the first chunks are sent to the model; the rest of a long
	// document is dropped to bound token cost. Known limitation.
	maxChunksPerDoc = 3
	chunkPreview    = 1000
	maxTotalClauses = 20
	maxChunkClauses = 10
	interChunkWait  = 2 * time.Second
	extractRetries  = 2
)

var (
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
	sentenceRe   = regexp.MustCompile(`[.!?]+`)
)

// ClauseExtractor asks the model for candidate clauses chunk by chunk,
// falling back to naive sentence splitting when the model fails or returns
// something unparseable.
type ClauseExtractor struct {
	client ModelCaller
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewClauseExtractor(client ModelCaller) *ClauseExtractor {
	return &ClauseExtractor{client: client, sleep: sleepCtx}
}

// Extract returns up to maxTotalClauses deduplicated clause texts.
func (e *ClauseExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	chunks := splitChunks(text)

	var all []string
	for i, chunk := range chunks {
		all = append(all, e.extractChunk(ctx, chunk)...)

		if i < len(chunks)-1 {
			if err := e.sleep(ctx, interChunkWait); err != nil {
				return dedupeClauses(all, maxTotalClauses), err
			}
		}
	}

	return dedupeClauses(all, maxTotalClauses), nil
}

func (e *ClauseExtractor) extractChunk(ctx context.Context, chunk string) []string {
	preview := chunk
	if len(preview) > chunkPreview {
		preview = sanitizeUTF8(preview[:chunkPreview])
	}

	prompt := fmt.Sprintf(`Extract key clauses from this text. Return only JSON:

%s...

JSON format:
{"clauses": ["clause1", "clause2"]}`, preview)

	messages := []Message{
		{Role: RoleSystem, Content: "Extract clauses. Return only JSON."},
		{Role: RoleUser, Content: prompt},
	}

	result, err := e.client.Call(ctx, messages, extractRetries)
	if err != nil {
		log.Printf("clause extraction call failed: %v", err)
		return splitSentences(chunk, 30, 5)
	}

	raw := jsonObjectRe.FindString(result)
	if raw == "" {
		return splitSentences(chunk, 30, maxChunkClauses)
	}

	var data struct {
		Clauses []string `json:"clauses"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		log.Printf("clause extraction returned invalid json: %v", err)
		return splitSentences(chunk, 30, maxChunkClauses)
	}

	clauses := data.Clauses
	if len(clauses) > maxChunkClauses {
		clauses = clauses[:maxChunkClauses]
	}
	return clauses
}

// splitChunks cuts text into overlapping windows of maxChunkSize, capped at
// maxChunksPerDoc.
func splitChunks(text string) []string {
	if len(text) <= maxChunkSize {
		return []string{text}
	}

	var chunks []string
	step := maxChunkSize - chunkOverlap
	for start := 0; start < len(text) && len(chunks) < maxChunksPerDoc; start += step {
		end := start + maxChunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, sanitizeUTF8(text[start:end]))
	}
	return chunks
}

// splitSentences is the model-free fallback: fragments between sentence
// terminators longer than minLen characters, capped at max.
func splitSentences(text string, minLen, max int) []string {
	var out []string
	for _, s := range sentenceRe.Split(text, -1) {
		s = strings.TrimSpace(s)
		if len(s) > minLen {
			out = append(out, s)
		}
		if len(out) >= max {
			break
		}
	}
	return out
}

// dedupeClauses removes exact duplicates, preserving first-seen order, and
// caps the result.
func dedupeClauses(clauses []string, max int) []string {
	seen := make(map[string]bool, len(clauses))
	var out []string
	for _, c := range clauses {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) >= max {
			break
		}
	}
	return out
}
