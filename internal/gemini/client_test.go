package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"google.golang.org/genai"
)

type fakeCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	calls   []fakeCall
	results []fakeResult
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, config: config})
	if len(f.results) == 0 {
		return nil, errors.New("unexpected call")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.resp, r.err
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, len(texts))
	for i, t := range texts {
		parts[i] = &genai.Part{Text: t}
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func newTestClient(f *fakeModels) *Client {
	return &Client{
		models:     f,
		model:      "gemini-test",
		maxRetries: 3,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = orig })
}

func TestGenerate_SystemInstructionAndRoles(t *testing.T) {
	f := &fakeModels{results: []fakeResult{{resp: textResponse("How many chairs?")}}}
	c := newTestClient(f)

	temp := 0.3
	out, err := c.Generate(context.Background(), Request{
		Messages: []Message{
			{Role: "system", Content: "You draft RFPs."},
			{Role: "user", Content: "I need chairs"},
			{Role: "assistant", Content: "Sure."},
			{Role: "user", Content: "Office chairs"},
		},
		JSON:        true,
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "How many chairs?" {
		t.Errorf("output = %q", out)
	}

	call := f.calls[0]
	if call.model != "gemini-test" {
		t.Errorf("model = %q", call.model)
	}
	if len(call.contents) != 3 {
		t.Fatalf("got %d contents, want 3", len(call.contents))
	}
	if call.contents[1].Role != genai.RoleModel {
		t.Errorf("assistant role = %q, want %q", call.contents[1].Role, genai.RoleModel)
	}
	if call.config.SystemInstruction == nil || call.config.SystemInstruction.Parts[0].Text != "You draft RFPs." {
		t.Error("system instruction not set")
	}
	if call.config.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", call.config.ResponseMIMEType)
	}
	if call.config.Temperature == nil || *call.config.Temperature != float32(0.3) {
		t.Errorf("Temperature = %v", call.config.Temperature)
	}
}

func TestGenerate_JoinsParts(t *testing.T) {
	f := &fakeModels{results: []fakeResult{{resp: textResponse("first", " ", "second")}}}
	out, err := newTestClient(f).Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "first\nsecond" {
		t.Errorf("output = %q", out)
	}
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	noSleep(t)
	f := &fakeModels{results: []fakeResult{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{resp: textResponse("retry ok")},
	}}
	out, err := newTestClient(f).Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "retry ok" || len(f.calls) != 2 {
		t.Errorf("output = %q after %d calls", out, len(f.calls))
	}
}

func TestGenerate_StopsAfterRetries(t *testing.T) {
	noSleep(t)
	apiErr := genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
	f := &fakeModels{results: []fakeResult{{err: apiErr}, {err: apiErr}, {err: apiErr}}}
	if _, err := newTestClient(f).Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(f.calls) != 3 {
		t.Errorf("calls = %d, want 3", len(f.calls))
	}
}

func TestGenerate_NoRetryOnClientError(t *testing.T) {
	f := &fakeModels{results: []fakeResult{{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}}}}
	if _, err := newTestClient(f).Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("expected error")
	}
	if len(f.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(f.calls))
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	f := &fakeModels{results: []fakeResult{{resp: &genai.GenerateContentResponse{}}}}
	if _, err := newTestClient(f).Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "  ", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
