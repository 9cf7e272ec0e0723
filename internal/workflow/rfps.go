package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/procura/internal/draft"
	"github.com/kalambet/procura/internal/rfp"
)

// RFPPatch is a manual edit. Nil fields are left unchanged.
type RFPPatch struct {
	Title        *string           `json:"title,omitempty"`
	Description  *string           `json:"description,omitempty"`
	Budget       *float64          `json:"budget,omitempty"`
	Deadline     *string           `json:"deadline,omitempty"`
	Requirements *rfp.Requirements `json:"requirements,omitempty"`
}

// UpdateRFP applies a manual edit. Budget and requirement edits clear the
// cached comparison.
func (s *Service) UpdateRFP(_ context.Context, id string, patch RFPPatch) (rfp.RFP, error) {
	r, err := s.store.GetRFP(id)
	if err != nil {
		return rfp.RFP{}, err
	}
	if r.Status == rfp.StatusClosed {
		return rfp.RFP{}, fmt.Errorf("editing rfp %s: %w", id, ErrRFPClosed)
	}

	structural := false
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return rfp.RFP{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		r.Title = t
	}
	if patch.Description != nil {
		r.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Budget != nil {
		if *patch.Budget < 0 {
			return rfp.RFP{}, fmt.Errorf("%w: budget cannot be negative", ErrInvalidInput)
		}
		if r.Budget == nil || *r.Budget != *patch.Budget {
			b := *patch.Budget
			r.Budget = &b
			structural = true
		}
	}
	if patch.Deadline != nil {
		if strings.TrimSpace(*patch.Deadline) == "" {
			r.Deadline = nil
		} else {
			dl := draft.ParseDeadline(*patch.Deadline)
			if dl == nil {
				return rfp.RFP{}, fmt.Errorf("%w: unrecognized deadline %q", ErrInvalidInput, *patch.Deadline)
			}
			r.Deadline = dl
		}
	}
	if patch.Requirements != nil {
		r.Requirements = patch.Requirements.Clone()
		structural = true
	}

	if err := s.store.UpdateRFP(r, structural); err != nil {
		return rfp.RFP{}, fmt.Errorf("updating rfp: %w", err)
	}
	s.logger.Info("rfp edited", "rfp_id", id, "structural", structural)
	return s.store.GetRFP(id)
}

// CloseRFP stops accepting proposals for an RFP.
func (s *Service) CloseRFP(_ context.Context, id string) error {
	if err := s.store.SetRFPStatus(id, rfp.StatusClosed); err != nil {
		return err
	}
	s.logger.Info("rfp closed", "rfp_id", id)
	return nil
}
