package engine

import "context"

// Engine abstracts a text-generation backend (Ollama, an OpenAI-compatible
// API, or Gemini). The assistant, extractor and narrator use this interface
// instead of depending on a concrete client.
type Engine interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Model is the model used when Chat is called with an empty model name.
	Model() string

	// Chat sends messages to the given model and returns the assistant's response.
	// When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}

// ModelManager is implemented by backends that host models locally and can
// download missing ones.
type ModelManager interface {
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
