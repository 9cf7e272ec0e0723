package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/kalambet/procura/internal/rfp"
)

// IMAPConfig holds the inbox settings. Insecure disables TLS and is meant
// for local test servers.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	Insecure bool
}

// IMAPReader fetches unread vendor replies. A message is flagged \Seen only
// after its handler accepted it, so it is offered until handled once.
type IMAPReader struct {
	cfg    IMAPConfig
	logger *slog.Logger
}

// NewIMAPReader creates a reader for cfg.
func NewIMAPReader(cfg IMAPConfig) *IMAPReader {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPReader{cfg: cfg, logger: slog.Default()}
}

// PollInbox passes the unread messages of the mailbox to handle, oldest
// first, and flags the ones it accepted as seen. Handler errors do not stop
// the poll; they are returned joined once the accepted messages are flagged.
func (r *IMAPReader) PollInbox(ctx context.Context, handle func(rfp.VendorReply) error) error {
	if r.cfg.Host == "" {
		return errors.New("imap host is required")
	}

	c, err := r.dial()
	if err != nil {
		return err
	}
	defer c.Logout()

	// go-imap v1 is not context aware; closing the connection aborts any
	// command in flight.
	stop := context.AfterFunc(ctx, func() { c.Terminate() })
	defer stop()

	if err := c.Login(r.cfg.Username, r.cfg.Password); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(r.cfg.Mailbox, false); err != nil {
		return fmt.Errorf("selecting %s: %w", r.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("searching unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid, imap.FetchInternalDate}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	type fetched struct {
		uid   uint32
		reply rfp.VendorReply
	}
	var pending []fetched
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			r.logger.Warn("imap message without body", "uid", msg.Uid)
			continue
		}
		reply, err := ParseReply(body)
		if err != nil {
			r.logger.Warn("skipping unparsable message", "uid", msg.Uid, "error", err)
			continue
		}
		if reply.ReceivedAt.IsZero() && !msg.InternalDate.IsZero() {
			reply.ReceivedAt = msg.InternalDate.UTC()
		}
		pending = append(pending, fetched{uid: msg.Uid, reply: reply})
	}
	if err := <-done; err != nil {
		return fmt.Errorf("fetching messages: %w", err)
	}

	// The fetch must be drained before the handlers run: go-imap v1 does
	// not allow a second command while a FETCH is streaming.
	seen := new(imap.SeqSet)
	var errs []error
	for _, m := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := handle(m.reply); err != nil {
			r.logger.Warn("reply left unread", "uid", m.uid, "from", m.reply.VendorEmail, "error", err)
			errs = append(errs, err)
			continue
		}
		seen.AddNum(m.uid)
	}

	if !seen.Empty() {
		flags := []interface{}{imap.SeenFlag}
		if err := c.UidStore(seen, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return fmt.Errorf("flagging seen: %w", err)
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r.logger.Debug("inbox polled", "mailbox", r.cfg.Mailbox, "fetched", len(pending), "failed", len(errs))
	return errors.Join(errs...)
}

func (r *IMAPReader) dial() (*client.Client, error) {
	port := r.cfg.Port
	if port == 0 {
		port = 993
		if r.cfg.Insecure {
			port = 143
		}
	}
	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	var (
		c   *client.Client
		err error
	)
	if r.cfg.Insecure {
		c, err = client.DialWithDialer(dialer, addr)
	} else {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: r.cfg.Host})
	}
	if err != nil {
		return nil, fmt.Errorf("dialing imap %s: %w", addr, err)
	}
	return c, nil
}
