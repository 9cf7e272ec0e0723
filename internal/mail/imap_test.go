package mail

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"

	"github.com/kalambet/procura/internal/rfp"
)

// startIMAP runs an in-memory IMAP server. The memory backend has a single
// user "username" with password "password".
func startIMAP(t *testing.T) IMAPConfig {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := server.New(memory.New())
	s.AllowInsecureAuth = true
	go s.Serve(l)
	t.Cleanup(func() { s.Close() })

	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return IMAPConfig{Host: host, Port: port, Username: "username", Password: "password", Insecure: true}
}

func appendMessage(t *testing.T, cfg IMAPConfig, raw string) {
	t.Helper()
	c, err := client.Dial(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Logout()
	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := c.Append("INBOX", nil, time.Now(), bytes.NewBufferString(raw)); err != nil {
		t.Fatalf("append: %v", err)
	}
}

const acmeReply = "From: sales@acme.test\r\n" +
	"Subject: Re: [RFP-3f2c9a] Office chairs\r\n" +
	"Date: Tue, 03 Mar 2026 10:15:00 +0000\r\n" +
	"Message-ID: <reply-2@acme.test>\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"We quote $4,750 for 50 chairs.\r\n"

// collect polls once and returns the replies from sender, failing the
// handler for them when fail is set.
func collect(t *testing.T, r *IMAPReader, sender string, fail bool) ([]rfp.VendorReply, error) {
	t.Helper()
	var got []rfp.VendorReply
	err := r.PollInbox(context.Background(), func(reply rfp.VendorReply) error {
		if reply.VendorEmail != sender {
			return nil
		}
		got = append(got, reply)
		if fail {
			return errors.New("queue unavailable")
		}
		return nil
	})
	return got, err
}

func TestIMAPReader_PollInbox(t *testing.T) {
	cfg := startIMAP(t)
	appendMessage(t, cfg, acmeReply)

	r := NewIMAPReader(cfg)
	replies, err := collect(t, r, "sales@acme.test", false)
	if err != nil {
		t.Fatalf("PollInbox: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("appended reply not returned, got %+v", replies)
	}
	if replies[0].BodyText != "We quote $4,750 for 50 chairs." {
		t.Errorf("BodyText = %q", replies[0].BodyText)
	}
	if replies[0].MessageID != "reply-2@acme.test" {
		t.Errorf("MessageID = %q", replies[0].MessageID)
	}

	again, err := collect(t, r, "sales@acme.test", false)
	if err != nil {
		t.Fatalf("second PollInbox: %v", err)
	}
	if len(again) != 0 {
		t.Error("reply returned twice; it should be flagged seen")
	}
}

func TestIMAPReader_FailedHandlerLeavesUnread(t *testing.T) {
	cfg := startIMAP(t)
	appendMessage(t, cfg, acmeReply)
	r := NewIMAPReader(cfg)

	got, err := collect(t, r, "sales@acme.test", true)
	if err == nil {
		t.Fatal("expected the handler error to be returned")
	}
	if len(got) != 1 {
		t.Fatalf("handled %d replies, want 1", len(got))
	}

	got, err = collect(t, r, "sales@acme.test", false)
	if err != nil {
		t.Fatalf("PollInbox: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("reply not offered again after a failed handler, got %d", len(got))
	}

	got, _ = collect(t, r, "sales@acme.test", false)
	if len(got) != 0 {
		t.Error("handled reply offered again")
	}
}

func TestIMAPReader_LoginFailure(t *testing.T) {
	cfg := startIMAP(t)
	cfg.Password = "wrong"
	if err := NewIMAPReader(cfg).PollInbox(context.Background(), func(rfp.VendorReply) error { return nil }); err == nil {
		t.Fatal("expected login error")
	}
}

func TestIMAPReader_RequiresHost(t *testing.T) {
	if err := NewIMAPReader(IMAPConfig{}).PollInbox(context.Background(), func(rfp.VendorReply) error { return nil }); err == nil {
		t.Fatal("expected error without host")
	}
}
