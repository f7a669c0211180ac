package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewClient constructs the provider named in cfg.Provider. An empty provider
// defaults to "openai" since OpenAI-compatible endpoints cover local servers
// as well.
func NewClient(cfg *Config, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg, logger)
	case "anthropic":
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
