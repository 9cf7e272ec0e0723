package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/kalambet/procura/internal/rfp"
)

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender delivers RFP emails over SMTP, upgrading with STARTTLS when the
// server offers it.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *net.Dialer
	now    func() time.Time
	logger *slog.Logger
}

// NewSMTPSender creates a sender for cfg.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		dialer: &net.Dialer{Timeout: 30 * time.Second},
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Deliver sends r to vendor and returns the Message-ID of the sent email.
func (s *SMTPSender) Deliver(ctx context.Context, vendor rfp.Vendor, r rfp.RFP) (string, error) {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return "", errors.New("smtp host and from address are required")
	}
	if vendor.Email == "" {
		return "", fmt.Errorf("vendor %s has no email", vendor.ID)
	}

	id := NewMessageID(s.cfg.From)
	msg, err := Compose(r, vendor, &mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}, id, s.now())
	if err != nil {
		return "", err
	}
	if err := s.send(ctx, vendor.Email, msg); err != nil {
		return "", fmt.Errorf("sending to %s: %w", vendor.Email, err)
	}
	s.logger.Info("rfp email sent", "rfp_id", r.ID, "vendor", vendor.Email, "message_id", id)
	return id, nil
}

func (s *SMTPSender) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing DATA: %w", err)
	}
	return c.Quit()
}
