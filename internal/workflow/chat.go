package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/procura/internal/assistant"
	"github.com/kalambet/procura/internal/draft"
	"github.com/kalambet/procura/internal/engine"
	"github.com/kalambet/procura/internal/storage"
)

// ChatResult is the outcome of one conversational turn.
type ChatResult struct {
	ConversationID string      `json:"conversationId"`
	Response       string      `json:"response"`
	Draft          draft.Draft `json:"draft"`
	RFPID          string      `json:"rfpId,omitempty"`
	Created        bool        `json:"created"`
	Updated        []string    `json:"updated,omitempty"`
	ShowSendButton bool        `json:"showSendButton"`
}

// Chat runs one drafting turn. An empty conversationID starts a new
// conversation. The assistant's state update is reconciled into the stored
// draft; once the draft is eligible it becomes an RFP, and later turns
// update that RFP.
func (s *Service) Chat(ctx context.Context, conversationID, message string) (ChatResult, error) {
	if s.deps.Assistant == nil {
		return ChatResult{}, fmt.Errorf("assistant: %w", ErrNotConfigured)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatResult{}, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}

	conv, err := s.loadConversation(conversationID)
	if err != nil {
		return ChatResult{}, err
	}
	existing := draft.FromJSON([]byte(conv.StateJSON))

	if _, err := s.store.AppendMessage(conv.ID, "user", message); err != nil {
		return ChatResult{}, fmt.Errorf("saving user message: %w", err)
	}
	history, err := s.history(conv.ID)
	if err != nil {
		return ChatResult{}, err
	}
	vendors, err := s.vendors.List()
	if err != nil {
		return ChatResult{}, err
	}

	reply, err := s.deps.Assistant.Respond(ctx, history, assistant.State{Draft: existing, Vendors: vendors, RFPID: conv.RFPID})
	if err != nil {
		return ChatResult{}, err
	}

	incoming := draft.Parse(reply.StateUpdate)
	merged := draft.Merge(existing, incoming)

	res := ChatResult{
		ConversationID: conv.ID,
		Response:       reply.Response,
		Draft:          merged,
		RFPID:          conv.RFPID,
		ShowSendButton: reply.ShowSendButton,
	}
	if err := s.materialize(&res, merged, incoming); err != nil {
		return ChatResult{}, err
	}

	state, err := json.Marshal(merged)
	if err != nil {
		return ChatResult{}, fmt.Errorf("encoding draft: %w", err)
	}
	if err := s.store.SaveConversationState(conv.ID, string(state), res.RFPID); err != nil {
		return ChatResult{}, fmt.Errorf("saving draft: %w", err)
	}
	if _, err := s.store.AppendMessage(conv.ID, "assistant", reply.Response); err != nil {
		return ChatResult{}, fmt.Errorf("saving assistant message: %w", err)
	}
	return res, nil
}

func (s *Service) loadConversation(id string) (storage.Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}
	conv, err := s.store.GetConversation(id)
	if errors.Is(err, storage.ErrNotFound) {
		return s.store.CreateConversation(id)
	}
	return conv, err
}

func (s *Service) history(conversationID string) ([]engine.Message, error) {
	msgs, err := s.store.ListMessages(conversationID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	out := make([]engine.Message, len(msgs))
	for i, m := range msgs {
		out[i] = engine.Message{Role: m.Role, Content: m.Content}
	}
	return out, nil
}

// materialize creates the RFP the first time the draft is eligible and
// applies later turns to it.
func (s *Service) materialize(res *ChatResult, merged, incoming draft.Draft) error {
	if res.RFPID == "" {
		if !draft.Eligible(merged) {
			return nil
		}
		r := draft.NewRFP(merged, uuid.NewString(), s.now())
		if err := s.store.CreateRFP(r); err != nil {
			return fmt.Errorf("creating rfp: %w", err)
		}
		res.RFPID = r.ID
		res.Created = true
		s.logger.Info("rfp created from conversation", "rfp_id", r.ID, "conversation_id", res.ConversationID)
		return nil
	}

	current, err := s.store.GetRFP(res.RFPID)
	if err != nil {
		return fmt.Errorf("loading rfp %s: %w", res.RFPID, err)
	}
	updated, ch := draft.ApplyUpdate(current, incoming)
	if !ch.Changed() {
		return nil
	}
	updated.UpdatedAt = s.now()
	if err := s.store.UpdateRFP(updated, ch.Structural); err != nil {
		return fmt.Errorf("updating rfp: %w", err)
	}
	res.Updated = ch.Fields
	s.logger.Info("rfp updated from conversation", "rfp_id", updated.ID, "fields", ch.Fields, "structural", ch.Structural)
	return nil
}
