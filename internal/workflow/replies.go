package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/procura/internal/evaluation"
	"github.com/kalambet/procura/internal/mail"
	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
)

// ProcessReply turns a vendor reply into a proposal and evaluates it. A
// second reply from the same vendor to the same RFP replaces the first
// proposal's content.
func (s *Service) ProcessReply(ctx context.Context, reply rfp.VendorReply) (rfp.Proposal, error) {
	if s.deps.Extractor == nil {
		return rfp.Proposal{}, fmt.Errorf("extractor: %w", ErrNotConfigured)
	}

	vendor, err := s.vendors.ByEmail(reply.VendorEmail)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("skipping reply from unknown sender", "vendor", reply.VendorEmail, "subject", reply.Subject)
		return rfp.Proposal{}, fmt.Errorf("%s: %w", reply.VendorEmail, ErrUnknownSender)
	}
	if err != nil {
		return rfp.Proposal{}, err
	}

	r, err := s.rfpForReply(reply, vendor)
	if err != nil {
		return rfp.Proposal{}, err
	}
	if r.Status == rfp.StatusClosed {
		s.logger.Warn("skipping reply to closed rfp", "rfp_id", r.ID, "vendor", vendor.Email)
		return rfp.Proposal{}, fmt.Errorf("rfp %s: %w", r.ID, ErrRFPClosed)
	}

	fields, parsed := s.deps.Extractor.Extract(ctx, reply, r)
	now := s.now()
	p := rfp.Proposal{
		ID:          uuid.NewString(),
		RFPID:       r.ID,
		VendorID:    vendor.ID,
		RawReply:    reply.BodyText,
		Fields:      fields,
		ParsedData:  parsed,
		Attachments: reply.Attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.CreateProposal(p)
	if errors.Is(err, storage.ErrConflict) {
		existing, gerr := s.store.GetProposalByVendor(r.ID, vendor.ID)
		if gerr != nil {
			return rfp.Proposal{}, fmt.Errorf("loading existing proposal: %w", gerr)
		}
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		err = s.store.UpdateProposal(p)
		s.logger.Info("proposal replaced by newer reply", "rfp_id", r.ID, "vendor", vendor.Email, "proposal_id", p.ID)
	}
	if err != nil {
		return rfp.Proposal{}, fmt.Errorf("saving proposal: %w", err)
	}

	eval := evaluation.Evaluate(p, vendor.Name, evaluation.TargetOf(r))
	err = s.store.SaveEvaluation(p.ID, p.UpdatedAt, eval)
	if errors.Is(err, storage.ErrStale) {
		s.logger.Info("proposal replaced before its evaluation was saved", "rfp_id", r.ID, "proposal_id", p.ID)
		return p, nil
	}
	if err != nil {
		return rfp.Proposal{}, fmt.Errorf("saving evaluation: %w", err)
	}
	p.Evaluation = &eval
	s.logger.Info("proposal processed", "rfp_id", r.ID, "vendor", vendor.Email, "score", eval.OverallScore)
	return p, nil
}

// rfpForReply finds the RFP a reply answers: by the Message-ID it replies
// to, then by the subject tag, then by the vendor's most recent dispatch.
func (s *Service) rfpForReply(reply rfp.VendorReply, vendor rfp.Vendor) (rfp.RFP, error) {
	if reply.InReplyTo != "" {
		d, err := s.store.DispatchByMessageID(reply.InReplyTo)
		if err == nil {
			return s.store.GetRFP(d.RFPID)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return rfp.RFP{}, err
		}
	}
	if id, ok := mail.RFPIDFromSubject(reply.Subject); ok {
		r, err := s.store.GetRFP(id)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return rfp.RFP{}, err
		}
	}
	d, err := s.store.LatestDispatch(vendor.ID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("reply does not match any rfp", "vendor", vendor.Email, "subject", reply.Subject)
		return rfp.RFP{}, ErrUnmatchedReply
	}
	if err != nil {
		return rfp.RFP{}, err
	}
	return s.store.GetRFP(d.RFPID)
}

// EvaluateProposal recomputes and stores the evaluation of one proposal.
func (s *Service) EvaluateProposal(_ context.Context, proposalID string) (rfp.Evaluation, error) {
	p, err := s.store.GetProposal(proposalID)
	if err != nil {
		return rfp.Evaluation{}, err
	}
	r, err := s.store.GetRFP(p.RFPID)
	if err != nil {
		return rfp.Evaluation{}, err
	}
	eval := evaluation.Evaluate(p, s.vendorName(p.VendorID), evaluation.TargetOf(r))
	if err := s.store.SaveEvaluation(p.ID, p.UpdatedAt, eval); err != nil {
		return rfp.Evaluation{}, fmt.Errorf("saving evaluation: %w", err)
	}
	return eval, nil
}

func (s *Service) vendorName(id string) string {
	v, err := s.vendors.Get(id)
	if err != nil {
		s.logger.Debug("vendor lookup failed", "vendor_id", id, "error", err)
		return ""
	}
	return v.Name
}

// InboxSummary counts the outcome of one inbox check.
type InboxSummary struct {
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// CheckInbox polls the inbox and processes every reply synchronously.
// Replies from unknown senders, to unknown RFPs or to closed RFPs are
// skipped and marked read. Any other failure leaves its reply unread for the
// next check and is returned after the remaining replies are processed.
func (s *Service) CheckInbox(ctx context.Context) (InboxSummary, error) {
	if s.deps.Inbox == nil {
		return InboxSummary{}, fmt.Errorf("inbox: %w", ErrNotConfigured)
	}
	var sum InboxSummary
	err := s.deps.Inbox.PollInbox(ctx, func(reply rfp.VendorReply) error {
		sum.Fetched++
		_, err := s.ProcessReply(ctx, reply)
		switch {
		case err == nil:
			sum.Processed++
		case IsSkippable(err):
			sum.Skipped++
		default:
			sum.Failed++
			return err
		}
		return nil
	})
	if err != nil {
		return sum, fmt.Errorf("polling inbox: %w", err)
	}
	return sum, nil
}

// IsSkippable reports whether a ProcessReply error means the reply should be
// dropped rather than retried.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrUnknownSender) || errors.Is(err, ErrUnmatchedReply) || errors.Is(err, ErrRFPClosed)
}
