package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kalambet/procura/internal/openai"
)

// OpenAIEngine adapts an OpenAI-compatible chat completion API.
type OpenAIEngine struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewOpenAIEngine creates an engine for the API at baseURL. An empty baseURL
// targets OpenAI.
func NewOpenAIEngine(apiKey, baseURL, model string, temperature float64) *OpenAIEngine {
	return &OpenAIEngine{
		client:      openai.NewClient(apiKey, baseURL),
		model:       model,
		temperature: temperature,
	}
}

func (e *OpenAIEngine) Name() string  { return "openai" }
func (e *OpenAIEngine) Model() string { return e.model }

// Chat requests JSON mode when a schema is given. The schema's fields are
// appended to the system prompt since JSON mode does not carry one.
func (e *OpenAIEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	if model == "" {
		model = e.model
	}
	msgs := make([]openai.Message, 0, len(messages)+1)
	for _, m := range messages {
		msgs = append(msgs, openai.Message{Role: m.Role, Content: m.Content})
	}

	temp := e.temperature
	req := openai.ChatRequest{Model: model, Temperature: &temp}
	if jsonSchema != nil {
		req.ResponseFormat = &openai.ResponseFormat{Type: "json_object"}
		msgs = append([]openai.Message{{Role: "system", Content: describeSchema(jsonSchema)}}, msgs...)
	}
	req.Messages = msgs

	out, err := e.client.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	return out, nil
}

// IsRunning lists models with a short timeout.
func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}

func describeSchema(s *Schema) string {
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Respond with a single JSON object with these fields:\n")
	for _, k := range keys {
		p := s.Properties[k]
		fmt.Fprintf(&b, "- %s (%s)", k, p.Type)
		if p.Description != "" {
			fmt.Fprintf(&b, ": %s", p.Description)
		}
		b.WriteString("\n")
	}
	if len(s.Required) > 0 {
		fmt.Fprintf(&b, "Required: %s\n", strings.Join(s.Required, ", "))
	}
	return b.String()
}
