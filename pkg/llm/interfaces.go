// Package llm provides chat-completion clients for the model-backed
// translation strategy. Two providers are supported: OpenAI-compatible
// endpoints (including local vLLM-style servers) and Anthropic.
package llm

import "context"

// CompletionResult holds a model completion with usage stats.
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the provider-neutral completion interface consumed by the
// translator. Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a system message plus a user prompt and returns the
	// model's text response. Errors are classified (*Error) so callers can
	// distinguish retryable transport failures from permanent ones.
	Complete(ctx context.Context, systemMessage, prompt string) (*CompletionResult, error)

	// Ping performs a minimal round trip to verify the endpoint is reachable
	// and the credentials are accepted.
	Ping(ctx context.Context) error

	// Model returns the configured model name, for logging.
	Model() string
}

// Config holds provider-independent client settings.
type Config struct {
	Provider string // "openai" or "anthropic"
	Endpoint string // base URL; optional for anthropic
	Model    string
	APIKey   string // optional for local OpenAI-compatible endpoints
}
