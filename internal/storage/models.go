package storage

import (
	"errors"
	"time"

	"github.com/kalambet/procura/internal/rfp"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would duplicate a unique record: a
// second proposal from the same vendor for the same RFP, or a second
// vendor with the same email.
var ErrConflict = errors.New("conflict")

// ErrStale is returned when a write was computed from a version of a record
// that has since been replaced.
var ErrStale = errors.New("stale write")

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// Dispatch records one RFP email sent to one vendor.
type Dispatch struct {
	ID        string    `json:"id"`
	RFPID     string    `json:"rfpId"`
	VendorID  string    `json:"vendorId"`
	MessageID string    `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}

// Conversation holds the agent state of one chat session. StateJSON is the
// serialized draft; RFPID is set once the draft has been materialized.
type Conversation struct {
	ID        string
	RFPID     string
	StateJSON string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn of a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"` // "user" or "assistant"
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CachedComparison is the comparison cache of an RFP together with the
// epoch it was read at. Pass the epoch back to StoreComparison.
type CachedComparison struct {
	Epoch     int64
	UpdatedAt *time.Time
	Result    *rfp.ComparisonResult
}
