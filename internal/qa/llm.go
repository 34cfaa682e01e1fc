package qa

import "context"

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one role-tagged entry of a chat-completion request.
type Message struct {
	Role    Role
	Content string
}

// CompletionClient issues a single chat-completion call.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type EmbeddingsClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelCaller is the retrying front of CompletionClient that the extractor
// and the answer engine talk to.
type ModelCaller interface {
	Call(ctx context.Context, messages []Message, maxRetries int) (string, error)
}
