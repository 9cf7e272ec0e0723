package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateConversation starts an empty conversation.
func (s *Store) CreateConversation(id string) (Conversation, error) {
	now := time.Now().UTC()
	c := Conversation{ID: id, StateJSON: "{}", CreatedAt: now, UpdatedAt: now}
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, state_json, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.StateJSON, formatTime(now), formatTime(now),
	)
	if isUniqueViolation(err) {
		return Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrConflict)
	}
	if err != nil {
		return Conversation{}, err
	}
	return c, nil
}

func (s *Store) GetConversation(id string) (Conversation, error) {
	var c Conversation
	var rfpID sql.NullString
	var createdAt, updatedAt string
	err := s.db.QueryRow(`SELECT id, rfp_id, state_json, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &rfpID, &c.StateJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	c.RFPID = rfpID.String
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Conversation{}, fmt.Errorf("parsing created_at for conversation %s: %w", id, err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Conversation{}, fmt.Errorf("parsing updated_at for conversation %s: %w", id, err)
	}
	return c, nil
}

// SaveConversationState stores the agent state of a conversation and, when
// rfpID is not empty, links it to the RFP its draft became.
func (s *Store) SaveConversationState(id, stateJSON, rfpID string) error {
	var link sql.NullString
	if rfpID != "" {
		link = sql.NullString{String: rfpID, Valid: true}
	}
	res, err := s.db.Exec(`
		UPDATE conversations SET state_json = ?, rfp_id = COALESCE(?, rfp_id), updated_at = ? WHERE id = ?`,
		stateJSON, link, formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) AppendMessage(conversationID, role, content string) (Message, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, role, content, formatTime(now),
	)
	if err != nil {
		return Message{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, err
	}
	return Message{ID: id, ConversationID: conversationID, Role: role, Content: content, CreatedAt: now}, nil
}

// ListMessages returns the last limit messages of a conversation, oldest first.
func (s *Store) ListMessages(conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at FROM messages
			WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Message{}
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for message %d: %w", m.ID, err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}
