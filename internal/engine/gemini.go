package engine

import (
	"context"

	"github.com/kalambet/procura/internal/gemini"
)

type geminiGenerator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
	Model() string
}

// GeminiEngine adapts the Gemini API.
type GeminiEngine struct {
	client      geminiGenerator
	temperature float64
}

// NewGeminiEngine creates an engine for the Gemini API.
func NewGeminiEngine(ctx context.Context, apiKey, model string, temperature float64) (*GeminiEngine, error) {
	c, err := gemini.NewClient(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return &GeminiEngine{client: c, temperature: temperature}, nil
}

func (e *GeminiEngine) Name() string  { return "gemini" }
func (e *GeminiEngine) Model() string { return e.client.Model() }

func (e *GeminiEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	msgs := make([]gemini.Message, len(messages))
	for i, m := range messages {
		msgs[i] = gemini.Message{Role: m.Role, Content: m.Content}
	}
	if jsonSchema != nil {
		msgs = append([]gemini.Message{{Role: "system", Content: describeSchema(jsonSchema)}}, msgs...)
	}
	temp := e.temperature
	return e.client.Generate(ctx, gemini.Request{
		Model:       model,
		Messages:    msgs,
		JSON:        jsonSchema != nil,
		Temperature: &temp,
	})
}

// IsRunning reports whether a client is configured. The hosted API has no
// cheap reachability probe.
func (e *GeminiEngine) IsRunning(_ context.Context) bool {
	return e.client != nil
}
