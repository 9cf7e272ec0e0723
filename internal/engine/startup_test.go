package engine

import (
	"context"
	"io"
	"strings"
	"testing"
)

type mockEngine struct {
	isRunning bool
	model     string
	models    map[string]bool
	pulled    []string
}

func (m *mockEngine) Name() string  { return "mock" }
func (m *mockEngine) Model() string { return m.model }
func (m *mockEngine) Chat(_ context.Context, _ string, _ []Message, _ *Schema) (string, error) {
	return "", nil
}
func (m *mockEngine) IsRunning(_ context.Context) bool             { return m.isRunning }
func (m *mockEngine) HasModel(_ context.Context, name string) bool { return m.models[name] }
func (m *mockEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

// hostedEngine has no ModelManager.
type hostedEngine struct{ running bool }

func (h hostedEngine) Name() string  { return "hosted" }
func (h hostedEngine) Model() string { return "hosted-model" }
func (h hostedEngine) Chat(_ context.Context, _ string, _ []Message, _ *Schema) (string, error) {
	return "", nil
}
func (h hostedEngine) IsRunning(_ context.Context) bool { return h.running }

func TestEnsureReady_ModelPresent(t *testing.T) {
	m := &mockEngine{
		isRunning: true,
		model:     "llama3.2",
		models:    map[string]bool{"llama3.2": true},
	}
	if err := EnsureReady(context.Background(), m, "", io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockEngine{isRunning: true, model: "llama3.2", models: map[string]bool{}}
	var out strings.Builder
	if err := EnsureReady(context.Background(), m, "qwen2.5", &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "qwen2.5" {
		t.Errorf("expected pull of qwen2.5, got %v", m.pulled)
	}
	if !strings.Contains(out.String(), "model qwen2.5: ready") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockEngine{isRunning: false, models: map[string]bool{}}
	err := EnsureReady(context.Background(), m, "llama3.2", io.Discard)
	if err == nil {
		t.Fatal("expected error when engine is down")
	}
	if !strings.Contains(err.Error(), "mock") {
		t.Errorf("error = %q, want backend name", err)
	}
}

func TestEnsureReady_HostedBackend(t *testing.T) {
	var out strings.Builder
	if err := EnsureReady(context.Background(), hostedEngine{running: true}, "", &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if out.String() != "hosted: ready\n" {
		t.Errorf("output = %q", out.String())
	}
}
