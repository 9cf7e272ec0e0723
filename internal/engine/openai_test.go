package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIEngine_ChatWithSchema(t *testing.T) {
	var captured struct {
		Model          string           `json:"model"`
		Messages       []Message        `json:"messages"`
		ResponseFormat *json.RawMessage `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		fmt.Fprint(w, `{"id":"c1","choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`)
	}))
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL, "gpt-4o-mini", 0.2)
	schema := &Schema{
		Type: "object",
		Properties: map[string]SchemaProperty{
			"response": {Type: "string", Description: "reply to the user"},
		},
		Required: []string{"response"},
	}
	out, err := e.Chat(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, schema)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("out = %q", out)
	}
	if captured.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.ResponseFormat == nil {
		t.Error("response_format missing")
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v, want schema system message first", captured.Messages)
	}
	if !strings.Contains(captured.Messages[0].Content, "- response (string): reply to the user") {
		t.Errorf("schema prompt = %q", captured.Messages[0].Content)
	}
}

func TestOpenAIEngine_PlainChatHasNoFormat(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		fmt.Fprint(w, `{"id":"c1","choices":[{"message":{"content":"plain"}}]}`)
	}))
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL, "gpt-4o-mini", 0)
	if _, err := e.Chat(context.Background(), "gpt-4o", []Message{{Role: "user", Content: "hi"}}, nil); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, ok := raw["response_format"]; ok {
		t.Error("response_format sent without schema")
	}
	if raw["model"] != "gpt-4o" {
		t.Errorf("model = %v, want gpt-4o", raw["model"])
	}
}

func TestOpenAIEngine_IsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	defer srv.Close()

	if !NewOpenAIEngine("sk-test", srv.URL, "m", 0).IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}

	srv.Close()
	if NewOpenAIEngine("sk-test", srv.URL, "m", 0).IsRunning(context.Background()) {
		t.Error("IsRunning() = true after close, want false")
	}
}
