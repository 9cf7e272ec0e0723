package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
)

// Delivery is the outcome of sending an RFP to one vendor.
type Delivery struct {
	VendorID    string `json:"vendorId"`
	VendorEmail string `json:"vendorEmail"`
	MessageID   string `json:"messageId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SendResult lists successful and failed deliveries.
type SendResult struct {
	Sent   []Delivery `json:"sent"`
	Failed []Delivery `json:"failed"`
}

// ResolveVendors maps vendor references, ids or email addresses, to vendors.
func (s *Service) ResolveVendors(refs []string) ([]rfp.Vendor, error) {
	seen := make(map[string]bool, len(refs))
	var out []rfp.Vendor
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		var (
			v   rfp.Vendor
			err error
		)
		if strings.Contains(ref, "@") {
			v, err = s.vendors.ByEmail(ref)
		} else {
			v, err = s.vendors.Get(ref)
		}
		if err != nil {
			return nil, fmt.Errorf("vendor %q: %w", ref, err)
		}
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		out = append(out, v)
	}
	return out, nil
}

// SendRFP emails the RFP to every referenced vendor in parallel and records a
// dispatch for each delivery. A draft RFP becomes sent once at least one
// delivery succeeded. Failed deliveries are reported in the result; the
// error is set only when nothing was delivered.
func (s *Service) SendRFP(ctx context.Context, rfpID string, vendorRefs []string) (SendResult, error) {
	if s.deps.Sender == nil {
		return SendResult{}, fmt.Errorf("email sender: %w", ErrNotConfigured)
	}
	r, err := s.store.GetRFP(rfpID)
	if err != nil {
		return SendResult{}, err
	}
	if !rfp.CanTransition(r.Status, rfp.StatusSent) {
		return SendResult{}, fmt.Errorf("sending rfp %s in status %s: %w", r.ID, r.Status, rfp.ErrInvalidTransition)
	}
	vendors, err := s.ResolveVendors(vendorRefs)
	if err != nil {
		return SendResult{}, err
	}
	if len(vendors) == 0 {
		return SendResult{}, ErrNoVendors
	}

	deliveries := make([]Delivery, len(vendors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, v := range vendors {
		g.Go(func() error {
			d := Delivery{VendorID: v.ID, VendorEmail: v.Email}
			id, err := s.deps.Sender.Deliver(gctx, v, r)
			if err != nil {
				d.Error = err.Error()
			} else {
				d.MessageID = id
			}
			deliveries[i] = d
			return nil
		})
	}
	g.Wait()

	var res SendResult
	for _, d := range deliveries {
		if d.Error != "" {
			s.logger.Warn("rfp delivery failed", "rfp_id", r.ID, "vendor", d.VendorEmail, "error", d.Error)
			res.Failed = append(res.Failed, d)
			continue
		}
		if err := s.store.RecordDispatch(storage.Dispatch{
			ID:        uuid.NewString(),
			RFPID:     r.ID,
			VendorID:  d.VendorID,
			MessageID: d.MessageID,
			SentAt:    s.now(),
		}); err != nil {
			return res, fmt.Errorf("recording dispatch to %s: %w", d.VendorEmail, err)
		}
		res.Sent = append(res.Sent, d)
	}

	if len(res.Sent) == 0 {
		return res, errors.New("rfp was not delivered to any vendor")
	}
	if r.Status == rfp.StatusDraft {
		if err := s.store.SetRFPStatus(r.ID, rfp.StatusSent); err != nil {
			return res, err
		}
	}
	s.logger.Info("rfp sent", "rfp_id", r.ID, "sent", len(res.Sent), "failed", len(res.Failed))
	return res, nil
}
