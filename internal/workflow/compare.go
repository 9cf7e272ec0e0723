package workflow

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/procura/internal/comparison"
	"github.com/kalambet/procura/internal/evaluation"
	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
)

// Compare returns the comparison of an RFP's proposals. A valid cached
// comparison is returned as is unless force is set. Otherwise every
// proposal is evaluated, the narrative is written and the result is cached.
// A result computed while the cache was invalidated is returned but not
// stored.
func (s *Service) Compare(ctx context.Context, rfpID string, force bool) (rfp.ComparisonResult, error) {
	// The epoch is read before the inputs: an edit landing between the two
	// reads bumps it and the result below is then discarded.
	cached, err := s.store.GetComparison(rfpID)
	if err != nil {
		return rfp.ComparisonResult{}, fmt.Errorf("reading comparison cache: %w", err)
	}
	r, err := s.store.GetRFP(rfpID)
	if err != nil {
		return rfp.ComparisonResult{}, err
	}
	proposals, err := s.store.ListProposals(rfpID)
	if err != nil {
		return rfp.ComparisonResult{}, fmt.Errorf("listing proposals: %w", err)
	}

	if !force && comparison.IsValid(cached.Result, cached.UpdatedAt, proposals) {
		s.logger.Debug("comparison cache hit", "rfp_id", rfpID)
		return *cached.Result, nil
	}

	names := make([]string, len(proposals))
	for i, p := range proposals {
		names[i] = s.vendorName(p.VendorID)
	}

	target := evaluation.TargetOf(r)
	evals := make([]rfp.Evaluation, len(proposals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, p := range proposals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evals[i] = evaluation.Evaluate(p, names[i], target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rfp.ComparisonResult{}, err
	}

	for i, p := range proposals {
		err := s.store.SaveEvaluation(p.ID, p.UpdatedAt, evals[i])
		if errors.Is(err, storage.ErrStale) {
			s.logger.Info("skipped evaluation of a proposal replaced during comparison", "rfp_id", rfpID, "proposal_id", p.ID)
			continue
		}
		if err != nil {
			return rfp.ComparisonResult{}, fmt.Errorf("saving evaluation: %w", err)
		}
	}

	ranked := append([]rfp.Evaluation(nil), evals...)
	evaluation.SortByScore(ranked)

	var narrative *comparison.Narrative
	if s.deps.Narrator != nil && len(ranked) > 0 {
		narrative, err = s.deps.Narrator.Narrate(ctx, r, ranked)
		if err != nil {
			s.logger.Warn("comparison narrative failed, using fallback", "rfp_id", rfpID, "error", err)
			narrative = nil
		}
	}

	res := comparison.Build(r, ranked, narrative)
	stored, err := s.store.StoreComparison(rfpID, cached.Epoch, res, s.now())
	if err != nil {
		return rfp.ComparisonResult{}, fmt.Errorf("caching comparison: %w", err)
	}
	if !stored {
		s.logger.Info("discarded comparison computed before an invalidation", "rfp_id", rfpID)
	}
	return res, nil
}
