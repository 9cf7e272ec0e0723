package engine

import (
	"context"
	"fmt"
	"strings"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Provider      string
	Temperature   float64
	OllamaBaseURL string
	OllamaModel   string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIKey     string
	GeminiModel   string
	GeminiKey     string
}

// Detect returns the backend named by cfg.Provider. With no provider set, a
// configured Gemini key wins, then an OpenAI key, then local Ollama.
func Detect(ctx context.Context, cfg DetectConfig) (Engine, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "auto" {
		switch {
		case cfg.GeminiKey != "":
			provider = "gemini"
		case cfg.OpenAIKey != "":
			provider = "openai"
		default:
			provider = "ollama"
		}
	}

	switch provider {
	case "ollama":
		return NewOllamaEngine(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Temperature), nil
	case "openai":
		if cfg.OpenAIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("openai provider needs an api key or a base url")
		}
		return NewOpenAIEngine(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Temperature), nil
	case "gemini":
		return NewGeminiEngine(ctx, cfg.GeminiKey, cfg.GeminiModel, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
