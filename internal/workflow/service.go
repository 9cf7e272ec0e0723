// Package workflow composes the procurement core with its collaborators:
// the assistant that drafts RFPs, the mail transport, the proposal
// extractor and the comparison narrator.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kalambet/procura/internal/assistant"
	"github.com/kalambet/procura/internal/comparison"
	"github.com/kalambet/procura/internal/engine"
	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
)

var (
	// ErrUnknownSender is returned for a reply whose sender is not a vendor.
	ErrUnknownSender = errors.New("reply sender is not a known vendor")
	// ErrUnmatchedReply is returned when no RFP can be found for a reply.
	ErrUnmatchedReply = errors.New("reply does not match any RFP")
	// ErrRFPClosed is returned when a reply arrives for a closed RFP.
	ErrRFPClosed = errors.New("rfp is closed")
	// ErrNoVendors is returned when an RFP is sent to nobody.
	ErrNoVendors = errors.New("no vendors selected")
	// ErrInvalidInput is returned for a rejected manual edit.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotConfigured is returned when a collaborator is missing.
	ErrNotConfigured = errors.New("not configured")
)

// EmailSender delivers an RFP to a vendor and returns the Message-ID.
type EmailSender interface {
	Deliver(ctx context.Context, vendor rfp.Vendor, r rfp.RFP) (string, error)
}

// InboxReader passes unread vendor replies to handle. A reply whose handler
// returns nil is marked read; the others are offered again on the next poll.
type InboxReader interface {
	PollInbox(ctx context.Context, handle func(rfp.VendorReply) error) error
}

// Assistant produces the next turn of a drafting conversation.
type Assistant interface {
	Respond(ctx context.Context, history []engine.Message, state assistant.State) (assistant.Reply, error)
}

// Extractor reads proposal fields out of a vendor reply. It never fails;
// unreadable replies yield zero fields.
type Extractor interface {
	Extract(ctx context.Context, reply rfp.VendorReply, r rfp.RFP) (rfp.ProposalFields, map[string]any)
}

// Narrator writes the prose of a comparison.
type Narrator interface {
	Narrate(ctx context.Context, r rfp.RFP, evals []rfp.Evaluation) (*comparison.Narrative, error)
}

// VendorDirectory looks up vendors.
type VendorDirectory interface {
	List() ([]rfp.Vendor, error)
	Get(id string) (rfp.Vendor, error)
	ByEmail(email string) (rfp.Vendor, error)
}

// Deps are the collaborators of a Service. Any of them may be nil; the
// operations that need a missing one return ErrNotConfigured, except the
// narrator, whose absence selects the deterministic narrative.
type Deps struct {
	Sender    EmailSender
	Inbox     InboxReader
	Assistant Assistant
	Extractor Extractor
	Narrator  Narrator
}

// Config tunes a Service.
type Config struct {
	// Parallelism bounds concurrent deliveries and evaluations.
	Parallelism int
	// HistoryLimit is the number of recent messages sent to the assistant.
	HistoryLimit int
}

// Service runs the procurement workflow.
type Service struct {
	store   *storage.Store
	vendors VendorDirectory
	deps    Deps
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Service.
func New(store *storage.Store, vendors VendorDirectory, deps Deps, cfg Config) *Service {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return &Service{
		store:   store,
		vendors: vendors,
		deps:    deps,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
}

// Store returns the underlying store for read-only queries.
func (s *Service) Store() *storage.Store {
	return s.store
}

// Vendors returns the vendor directory.
func (s *Service) Vendors() VendorDirectory {
	return s.vendors
}
