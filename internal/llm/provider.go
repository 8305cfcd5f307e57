package llm

import "fmt"

type ProviderConfig struct {
	Provider string // ollama, openai
	APIKey   string
	Model    string
	BaseURL  string
	Defaults Options
}

func NewClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return NewOllamaClient(base, cfg.Model, cfg.Defaults), nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Defaults), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
