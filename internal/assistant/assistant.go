// Package assistant drives the text-generation backend for the two
// conversational tasks of procura: drafting an RFP with the user, and
// writing the prose of a proposal comparison.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/procura/internal/comparison"
	"github.com/kalambet/procura/internal/draft"
	"github.com/kalambet/procura/internal/engine"
	"github.com/kalambet/procura/internal/loose"
	"github.com/kalambet/procura/internal/rfp"
)

const (
	defaultTimeout  = 90 * time.Second
	fallbackMessage = "Sorry, I could not process that. Could you rephrase what you need?"
)

// Chatter is the subset of engine.Engine the assistant needs.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
}

// State is what the assistant knows about the conversation besides its
// messages.
type State struct {
	Draft   draft.Draft
	Vendors []rfp.Vendor
	RFPID   string
}

// Reply is one assistant turn. StateUpdate is the raw, untrusted draft
// fragment and must go through draft.Normalize.
type Reply struct {
	Response       string         `json:"response"`
	StateUpdate    map[string]any `json:"stateUpdate,omitempty"`
	ShowSendButton bool           `json:"showSendButton"`
}

// Assistant produces drafting replies and comparison narratives.
type Assistant struct {
	client  Chatter
	model   string
	timeout time.Duration
	now     func() time.Time
}

// New creates an Assistant. An empty model uses the backend's default.
func New(client Chatter, model string) *Assistant {
	return &Assistant{client: client, model: model, timeout: defaultTimeout, now: time.Now}
}

// WithTimeout bounds each backend call.
func (a *Assistant) WithTimeout(d time.Duration) *Assistant {
	if d > 0 {
		a.timeout = d
	}
	return a
}

// Respond produces the next assistant turn. Backend failures are returned;
// an answer that is not valid JSON becomes a plain reply without a state
// update.
func (a *Assistant) Respond(ctx context.Context, history []engine.Message, state State) (Reply, error) {
	if len(history) == 0 {
		return Reply{}, errors.New("empty conversation")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.Chat(ctx, a.model, BuildPrompt(history, state, a.now()), replySchema())
	if err != nil {
		return Reply{}, fmt.Errorf("assistant chat: %w", err)
	}
	return parseReply(raw), nil
}

func parseReply(raw string) Reply {
	obj, err := loose.Object(raw)
	if err != nil {
		slog.Warn("assistant reply is not JSON", "error", err)
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "{") {
			text = fallbackMessage
		}
		return Reply{Response: text}
	}

	reply := Reply{ShowSendButton: loose.Bool(obj["showSendButton"])}
	if s, ok := loose.String(obj["response"]); ok {
		reply.Response = s
	}
	switch su := obj["stateUpdate"].(type) {
	case map[string]any:
		reply.StateUpdate = su
	case string:
		if m, err := loose.Object(su); err == nil {
			reply.StateUpdate = m
		}
	}
	if reply.Response == "" {
		reply.Response = fallbackMessage
	}
	return reply
}

func replySchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"response":       {Type: "string", Description: "Message shown to the user"},
			"stateUpdate":    {Type: "object", Description: "RFP fields learned or changed in this turn"},
			"showSendButton": {Type: "boolean", Description: "Whether the RFP is ready to send"},
		},
		Required: []string{"response", "stateUpdate", "showSendButton"},
	}
}

// Narrate writes the prose of a comparison for the ranked evaluations.
// It fails when the backend fails or returns nothing usable; callers fall
// back to comparison.Fallback.
func (a *Assistant) Narrate(ctx context.Context, r rfp.RFP, evals []rfp.Evaluation) (*comparison.Narrative, error) {
	if len(evals) == 0 {
		return nil, errors.New("no evaluations to narrate")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.Chat(ctx, a.model, BuildNarrativePrompt(r, evals), narrativeSchema())
	if err != nil {
		return nil, fmt.Errorf("narrative chat: %w", err)
	}

	obj, err := loose.Object(raw)
	if err != nil {
		return nil, err
	}
	var n comparison.Narrative
	n.Summary, _ = loose.String(obj["summary"])
	n.Recommendation, _ = loose.String(obj["recommendation"])
	n.Reasoning, _ = loose.String(obj["reasoning"])
	n.NegotiationPoints, _ = loose.Strings(obj["negotiationPoints"])
	if n.Summary == "" && n.Recommendation == "" && n.Reasoning == "" {
		return nil, errors.New("narrative has no text")
	}
	return &n, nil
}

func narrativeSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"summary":           {Type: "string", Description: "Overview of the proposals"},
			"recommendation":    {Type: "string", Description: "Which vendor to choose"},
			"reasoning":         {Type: "string", Description: "Why the recommended vendor wins"},
			"negotiationPoints": {Type: "array", Description: "Points to raise with vendors"},
		},
		Required: []string{"summary", "recommendation", "reasoning"},
	}
}
