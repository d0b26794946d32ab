package llm

import "context"

// Message is one conversation turn sent to the provider.
// ImageURL attaches an image to a user turn when the provider supports vision.
type Message struct {
	Role     string
	Content  string
	ImageURL string
}

// Request carries a structured prompt to a provider.
// JSONMode instructs the provider to emit a single JSON object.
type Request struct {
	Messages    []Message
	JSONMode    bool
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the raw provider reply. Text may be non-JSON even when
// JSONMode was requested; callers must parse tolerantly.
type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Adapter abstracts an LLM provider.
type Adapter interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
