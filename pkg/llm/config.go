package llm

import (
	"fmt"
	"strings"
)

// Config describes one model binding. Temperature applies to chat models
// only; embedding calls ignore it. A nil Temperature leaves the choice to
// the provider, so an explicit 0 still means deterministic sampling.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	APIURL      string
	MaxTokens   int
	Temperature *float64
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
