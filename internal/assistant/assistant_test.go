package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/procura/internal/engine"
	"github.com/kalambet/procura/internal/rfp"
)

// mockChatter implements Chatter for testing.
type mockChatter struct {
	response string
	err      error
	delay    time.Duration
	got      []engine.Message
	schema   *engine.Schema
}

func (m *mockChatter) Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error) {
	m.got = messages
	m.schema = jsonSchema
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

func userTurn(s string) []engine.Message {
	return []engine.Message{{Role: "user", Content: s}}
}

func TestRespond_ParsesReply(t *testing.T) {
	mock := &mockChatter{
		response: `{"response":"How many chairs?","stateUpdate":{"title":"Office chairs","requirements":{"items":[{"name":"Chair"}]}},"showSendButton":false}`,
	}
	a := New(mock, "llama3.2")
	got, err := a.Respond(context.Background(), userTurn("I need office chairs"), State{})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got.Response != "How many chairs?" {
		t.Errorf("Response = %q", got.Response)
	}
	if got.StateUpdate["title"] != "Office chairs" {
		t.Errorf("StateUpdate = %v", got.StateUpdate)
	}
	if got.ShowSendButton {
		t.Error("ShowSendButton = true, want false")
	}
	if mock.schema == nil {
		t.Error("expected structured output schema")
	}
}

func TestRespond_FencedJSONAndStringState(t *testing.T) {
	mock := &mockChatter{
		response: "Here you go:\n```json\n{\"response\":\"Ready to send.\",\"stateUpdate\":\"{\\\"budget\\\": \\\"$5,000\\\"}\",\"showSendButton\":\"true\"}\n```",
	}
	got, err := New(mock, "").Respond(context.Background(), userTurn("send it"), State{})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got.Response != "Ready to send." {
		t.Errorf("Response = %q", got.Response)
	}
	if got.StateUpdate["budget"] != "$5,000" {
		t.Errorf("StateUpdate = %v", got.StateUpdate)
	}
	if !got.ShowSendButton {
		t.Error("ShowSendButton = false, want true")
	}
}

func TestRespond_PlainTextFallback(t *testing.T) {
	mock := &mockChatter{response: "What budget do you have in mind?"}
	got, err := New(mock, "").Respond(context.Background(), userTurn("chairs"), State{})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got.Response != "What budget do you have in mind?" {
		t.Errorf("Response = %q", got.Response)
	}
	if got.StateUpdate != nil {
		t.Errorf("StateUpdate = %v, want nil", got.StateUpdate)
	}
}

func TestRespond_MalformedJSON(t *testing.T) {
	mock := &mockChatter{response: `{"response": "unterminated`}
	got, err := New(mock, "").Respond(context.Background(), userTurn("chairs"), State{})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got.Response != fallbackMessage {
		t.Errorf("Response = %q, want fallback", got.Response)
	}
}

func TestRespond_BackendError(t *testing.T) {
	mock := &mockChatter{err: fmt.Errorf("connection refused")}
	if _, err := New(mock, "").Respond(context.Background(), userTurn("hi"), State{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRespond_Timeout(t *testing.T) {
	mock := &mockChatter{response: `{"response":"late"}`, delay: 5 * time.Second}
	a := New(mock, "").WithTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := a.Respond(context.Background(), userTurn("hi"), State{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Respond took %v", elapsed)
	}
}

func TestRespond_EmptyHistory(t *testing.T) {
	mock := &mockChatter{response: `{"response":"hi"}`}
	if _, err := New(mock, "").Respond(context.Background(), nil, State{}); err == nil {
		t.Fatal("expected error for empty history")
	}
	if mock.got != nil {
		t.Error("backend called for empty history")
	}
}

func TestNarrate_ParsesNarrative(t *testing.T) {
	mock := &mockChatter{
		response: `{"summary":"Two proposals.","recommendation":"Choose Acme.","reasoning":"Cheapest and fastest.","negotiationPoints":["Ask Beta for a discount"]}`,
	}
	evals := []rfp.Evaluation{
		{VendorID: "v1", VendorName: "Acme", OverallScore: 91},
		{VendorID: "v2", VendorName: "Beta", OverallScore: 72},
	}
	n, err := New(mock, "").Narrate(context.Background(), rfp.RFP{Title: "Chairs"}, evals)
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if n.Recommendation != "Choose Acme." {
		t.Errorf("Recommendation = %q", n.Recommendation)
	}
	if len(n.NegotiationPoints) != 1 {
		t.Errorf("NegotiationPoints = %v", n.NegotiationPoints)
	}
	if !strings.Contains(mock.got[1].Content, "1. Acme: overall 91") {
		t.Errorf("prompt missing ranked vendor:\n%s", mock.got[1].Content)
	}
}

func TestNarrate_EmptyNarrative(t *testing.T) {
	mock := &mockChatter{response: `{"summary":"","negotiationPoints":[]}`}
	evals := []rfp.Evaluation{{VendorID: "v1", OverallScore: 50}}
	if _, err := New(mock, "").Narrate(context.Background(), rfp.RFP{}, evals); err == nil {
		t.Fatal("expected error for empty narrative")
	}
}

func TestNarrate_NoEvaluations(t *testing.T) {
	mock := &mockChatter{}
	if _, err := New(mock, "").Narrate(context.Background(), rfp.RFP{}, nil); err == nil {
		t.Fatal("expected error without evaluations")
	}
}
