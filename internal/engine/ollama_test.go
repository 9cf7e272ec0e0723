package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeOllama serves the subset of the Ollama API the engine uses and records
// the last chat request it saw.
type fakeOllama struct {
	models   []string
	lastChat map[string]any
}

func (f *fakeOllama) start(t *testing.T) *OllamaEngine {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"version": "0.6.2"})
	})
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		var tags struct {
			Models []map[string]string `json:"models"`
		}
		for _, m := range f.models {
			tags.Models = append(tags.Models, map[string]string{"name": m})
		}
		json.NewEncoder(w).Encode(tags)
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&f.lastChat)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": `{"title":"Laptops"}`},
		})
	})
	mux.HandleFunc("POST /api/pull", func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		for _, done := range []int{250, 1000} {
			enc.Encode(map[string]any{"status": "pulling", "total": 1000, "completed": done})
		}
		enc.Encode(map[string]any{"status": "success"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewOllamaEngine(srv.URL, "llama3.2", 0.2)
}

func TestOllamaEngine_ChatDefaultsModel(t *testing.T) {
	f := &fakeOllama{}
	e := f.start(t)

	out, err := e.Chat(context.Background(), "", []Message{{Role: "user", Content: "need laptops"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != `{"title":"Laptops"}` {
		t.Errorf("reply = %q", out)
	}
	if f.lastChat["model"] != "llama3.2" {
		t.Errorf("model = %v, want llama3.2", f.lastChat["model"])
	}
	if _, ok := f.lastChat["format"]; ok {
		t.Errorf("format sent without a schema: %v", f.lastChat["format"])
	}
}

func TestOllamaEngine_ChatForwardsSchema(t *testing.T) {
	f := &fakeOllama{}
	e := f.start(t)

	schema := &Schema{
		Type:       "object",
		Properties: map[string]SchemaProperty{"title": {Type: "string"}},
		Required:   []string{"title"},
	}
	if _, err := e.Chat(context.Background(), "qwen2.5", []Message{{Role: "user", Content: "x"}}, schema); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if f.lastChat["model"] != "qwen2.5" {
		t.Errorf("model = %v, want qwen2.5", f.lastChat["model"])
	}
	format, ok := f.lastChat["format"].(map[string]any)
	if !ok || format["type"] != "object" {
		t.Errorf("format = %v, want the schema object", f.lastChat["format"])
	}
}

func TestOllamaEngine_Models(t *testing.T) {
	e := (&fakeOllama{models: []string{"llama3.2:latest", "qwen2.5:7b"}}).start(t)
	ctx := context.Background()

	if !e.IsRunning(ctx) {
		t.Fatal("IsRunning = false against a live server")
	}
	names, err := e.ListModels(ctx)
	if err != nil || len(names) != 2 {
		t.Fatalf("ListModels = %v, %v", names, err)
	}
	for name, want := range map[string]bool{"llama3.2": true, "qwen2.5": true, "mistral": false} {
		if got := e.HasModel(ctx, name); got != want {
			t.Errorf("HasModel(%s) = %v, want %v", name, got, want)
		}
	}
}

func TestOllamaEngine_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if NewOllamaEngine(url, "llama3.2", 0.2).IsRunning(context.Background()) {
		t.Error("IsRunning = true against a closed server")
	}
}

func TestOllamaEngine_PullModel(t *testing.T) {
	e := (&fakeOllama{}).start(t)

	var seen []PullProgress
	if err := e.PullModel(context.Background(), "llama3.2", func(p PullProgress) { seen = append(seen, p) }); err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("progress updates = %d, want 3", len(seen))
	}
	if seen[0].Completed != 250 || seen[0].Total != 1000 || seen[2].Status != "success" {
		t.Errorf("progress = %+v", seen)
	}
	if err := e.PullModel(context.Background(), "llama3.2", nil); err != nil {
		t.Errorf("PullModel with nil callback: %v", err)
	}
}
