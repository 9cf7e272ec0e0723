package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/workflow"
)

// Poller periodically reads the inbox and queues one reply job per message.
type Poller struct {
	inbox    workflow.InboxReader
	queue    replyQueue
	interval time.Duration
	logger   *slog.Logger
}

type replyQueue interface {
	Reply(reply rfp.VendorReply) (string, error)
}

// NewPoller creates a Poller. If interval is <= 0, it defaults to one minute.
func NewPoller(inbox workflow.InboxReader, queue *Queue, interval time.Duration) *Poller {
	return newPoller(inbox, queue, interval)
}

func newPoller(inbox workflow.InboxReader, queue replyQueue, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{inbox: inbox, queue: queue, interval: interval, logger: slog.Default()}
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if n, err := p.PollOnce(ctx); err != nil {
			p.logger.Error("inbox poll failed", "queued", n, "error", err)
		} else if n > 0 {
			p.logger.Info("queued vendor replies", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce fetches new replies and queues them. It returns how many were
// queued. A reply that could not be queued stays unread in the inbox and
// is fetched again on the next poll.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	n := 0
	err := p.inbox.PollInbox(ctx, func(r rfp.VendorReply) error {
		if _, err := p.queue.Reply(r); err != nil {
			return fmt.Errorf("queueing reply from %s: %w", r.VendorEmail, err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("polling inbox: %w", err)
	}
	return n, nil
}
