package engine

import (
	"context"
	"testing"

	"github.com/kalambet/procura/internal/gemini"
)

type fakeGemini struct {
	got gemini.Request
}

func (f *fakeGemini) Generate(_ context.Context, req gemini.Request) (string, error) {
	f.got = req
	return `{"summary":"ok"}`, nil
}

func (f *fakeGemini) Model() string { return "gemini-test" }

func TestGeminiEngine_Chat(t *testing.T) {
	f := &fakeGemini{}
	e := &GeminiEngine{client: f, temperature: 0.4}

	schema := &Schema{Type: "object", Properties: map[string]SchemaProperty{"summary": {Type: "string"}}}
	out, err := e.Chat(context.Background(), "", []Message{
		{Role: "system", Content: "You compare proposals."},
		{Role: "user", Content: "compare"},
	}, schema)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != `{"summary":"ok"}` {
		t.Errorf("out = %q", out)
	}
	if !f.got.JSON {
		t.Error("JSON = false, want true with schema")
	}
	if len(f.got.Messages) != 3 || f.got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", f.got.Messages)
	}
	if f.got.Temperature == nil || *f.got.Temperature != 0.4 {
		t.Errorf("temperature = %v", f.got.Temperature)
	}
	if e.Model() != "gemini-test" || e.Name() != "gemini" {
		t.Errorf("Model/Name = %q/%q", e.Model(), e.Name())
	}
}
