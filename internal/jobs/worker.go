// Package jobs runs workflow operations from the SQLite job queue so that
// slow work (SMTP delivery, reply extraction) happens off the request path.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
	"github.com/kalambet/procura/internal/workflow"
)

// Job types.
const (
	TypeDispatch = "rfp.dispatch"
	TypeReply    = "reply.process"
	TypeEvaluate = "proposal.evaluate"
)

var allTypes = []string{TypeDispatch, TypeReply, TypeEvaluate}

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Processor runs the workflow operations behind each job type.
type Processor interface {
	SendRFP(ctx context.Context, rfpID string, vendorRefs []string) (workflow.SendResult, error)
	ProcessReply(ctx context.Context, reply rfp.VendorReply) (rfp.Proposal, error)
	EvaluateProposal(ctx context.Context, proposalID string) (rfp.Evaluation, error)
}

// Worker processes procura jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	proc   Processor
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, proc Processor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		proc:   proc,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(allTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	err = w.processJob(ctx, job)
	switch {
	case err == nil:
	case permanent(err):
		w.logger.Warn("dropping job", "job_id", job.ID, "type", job.Type, "error", err)
	default:
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// permanent reports whether retrying a job cannot change its outcome.
func permanent(err error) bool {
	return workflow.IsSkippable(err) ||
		errors.Is(err, errBadPayload) ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, rfp.ErrInvalidTransition) ||
		errors.Is(err, workflow.ErrNoVendors)
}

var errBadPayload = errors.New("malformed job payload")

type dispatchPayload struct {
	RFPID   string   `json:"rfp_id"`
	Vendors []string `json:"vendors"`
}

type evaluatePayload struct {
	ProposalID string `json:"proposal_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case TypeDispatch:
		var p dispatchPayload
		if err := decode(job, &p); err != nil {
			return err
		}
		res, err := w.proc.SendRFP(ctx, p.RFPID, p.Vendors)
		if err != nil {
			return err
		}
		for _, d := range res.Failed {
			w.logger.Warn("vendor not reached", "rfp_id", p.RFPID, "vendor", d.VendorEmail, "error", d.Error)
		}
		return nil

	case TypeReply:
		var reply rfp.VendorReply
		if err := decode(job, &reply); err != nil {
			return err
		}
		_, err := w.proc.ProcessReply(ctx, reply)
		return err

	case TypeEvaluate:
		var p evaluatePayload
		if err := decode(job, &p); err != nil {
			return err
		}
		_, err := w.proc.EvaluateProposal(ctx, p.ProposalID)
		return err
	}
	return fmt.Errorf("%w: unknown job type %q", errBadPayload, job.Type)
}

func decode(job *storage.Job, v any) error {
	if err := json.Unmarshal([]byte(job.PayloadJSON), v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}
