package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/storage"
)

// Enqueuer adds jobs to the queue.
type Enqueuer interface {
	EnqueueJob(job storage.Job) error
}

// Queue builds typed jobs.
type Queue struct {
	store Enqueuer
}

func NewQueue(store Enqueuer) *Queue {
	return &Queue{store: store}
}

// Dispatch queues delivery of an RFP to the referenced vendors.
func (q *Queue) Dispatch(rfpID string, vendorRefs []string) (string, error) {
	return q.enqueue(TypeDispatch, dispatchPayload{RFPID: rfpID, Vendors: vendorRefs})
}

// Reply queues processing of one vendor reply.
func (q *Queue) Reply(reply rfp.VendorReply) (string, error) {
	return q.enqueue(TypeReply, reply)
}

// Evaluate queues re-evaluation of a proposal.
func (q *Queue) Evaluate(proposalID string) (string, error) {
	return q.enqueue(TypeEvaluate, evaluatePayload{ProposalID: proposalID})
}

func (q *Queue) enqueue(typ string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", typ, err)
	}
	id := uuid.NewString()
	if err := q.store.EnqueueJob(storage.Job{ID: id, Type: typ, PayloadJSON: string(data)}); err != nil {
		return "", fmt.Errorf("enqueueing %s: %w", typ, err)
	}
	return id, nil
}
