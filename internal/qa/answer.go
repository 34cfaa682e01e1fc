package qa

import (
	"context"
	"fmt"
	"strings"

	wl "github.com/abadojack/whatlanggo"
)

const (
	answerTopClauses = 3
	maxClauseChars   = 200
	maxAnswerChars   = 200
	answerRetries    = 2
)

// AnswerEngine turns a question plus its matched clauses into a short
// answer. It never returns an error: every failure degrades to in-band
// answer text so sibling questions keep their slots.
type AnswerEngine struct {
	client ModelCaller
}

func NewAnswerEngine(client ModelCaller) *AnswerEngine {
	return &AnswerEngine{client: client}
}

// Answer produces (answer, rationale) for one question.
func (e *AnswerEngine) Answer(ctx context.Context, question string, matches []ClauseMatch) (string, string) {
	var clauses []string
	for _, m := range matches {
		if len(clauses) >= answerTopClauses {
			break
		}
		clauses = append(clauses, truncate(m.Clause, maxClauseChars))
	}

	var contextText strings.Builder
	for _, c := range clauses {
		contextText.WriteString("- ")
		contextText.WriteString(c)
		contextText.WriteString("\n")
	}

	prompt := fmt.Sprintf(`Question: %s

Context:
%s
Provide a direct answer based on the context above. Keep response under 100 words.`,
		question, contextText.String())

	messages := []Message{
		{Role: RoleSystem, Content: "You provide brief, direct answers. Answer in " + answerLanguage(question) + "."},
		{Role: RoleUser, Content: prompt},
	}

	response, err := e.client.Call(ctx, messages, answerRetries)
	if err != nil {
		if ErrorCode(err) == ERATELIMIT {
			return "Unable to process: rate limit reached", "Please try again in a few minutes"
		}
		return fmt.Sprintf("Unable to evaluate: %v", err), "Error in processing"
	}

	return truncate(strings.TrimSpace(response), maxAnswerChars), "Analysis completed"
}

// answerLanguage picks the response language from the question itself.
func answerLanguage(question string) string {
	info := wl.Detect(question)
	switch wl.LangToString(info.Lang) {
	case "por":
		return "Portuguese"
	case "spa":
		return "Spanish"
	case "hin":
		return "Hindi"
	default:
		return "English"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return sanitizeUTF8(s[:max]) + "..."
}
