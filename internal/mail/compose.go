// Package mail sends RFPs to vendors over SMTP and reads their replies from
// an IMAP inbox.
package mail

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/kalambet/procura/internal/money"
	"github.com/kalambet/procura/internal/rfp"
)

var subjectTag = regexp.MustCompile(`\[RFP-([A-Za-z0-9-]+)\]`)

// Subject returns the subject line of the RFP email. The tag lets a reply be
// matched to its RFP when In-Reply-To is missing.
func Subject(r rfp.RFP) string {
	return fmt.Sprintf("[RFP-%s] %s", r.ID, r.Title)
}

// RFPIDFromSubject returns the RFP id tagged in subject.
func RFPIDFromSubject(subject string) (string, bool) {
	m := subjectTag.FindStringSubmatch(subject)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// NewMessageID returns a unique Message-ID, without angle brackets, in the
// domain of the sender address.
func NewMessageID(from string) string {
	domain := "procura.local"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return uuid.NewString() + "@" + domain
}

// Compose renders the RFP email for one vendor as an RFC 5322 message.
func Compose(r rfp.RFP, vendor rfp.Vendor, from *mail.Address, messageID string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{{Name: vendor.Name, Address: vendor.Email}})
	h.SetSubject(Subject(r))
	h.SetMessageID(messageID)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write([]byte(Body(r, vendor))); err != nil {
		return nil, fmt.Errorf("writing body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}

// Body is the plain-text RFP addressed to vendor.
func Body(r rfp.RFP, vendor rfp.Vendor) string {
	var b strings.Builder
	name := vendor.Contact
	if name == "" {
		name = vendor.Name
	}
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	fmt.Fprintf(&b, "We invite you to submit a proposal for: %s\n\n", r.Title)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Description)
	}
	if r.Budget != nil {
		fmt.Fprintf(&b, "Budget: %s\n", money.Format(*r.Budget))
	}
	if r.Deadline != nil {
		fmt.Fprintf(&b, "Response deadline: %s\n", r.Deadline.Format("January 2, 2006"))
	}

	req := r.Requirements
	if len(req.Items) > 0 {
		b.WriteString("\nItems:\n")
		for _, it := range req.Items {
			b.WriteString("  - " + it.Name)
			if it.Quantity != nil {
				fmt.Fprintf(&b, " (quantity: %d)", *it.Quantity)
			}
			if it.Specifications != "" {
				fmt.Fprintf(&b, "\n    Specifications: %s", it.Specifications)
			}
			b.WriteString("\n")
		}
	}
	if req.DeliveryDays != nil {
		fmt.Fprintf(&b, "\nDelivery: within %d days\n", *req.DeliveryDays)
	}
	if req.PaymentTerms != "" {
		fmt.Fprintf(&b, "Payment terms: %s\n", req.PaymentTerms)
	}
	if req.Warranty != "" {
		fmt.Fprintf(&b, "Warranty: %s\n", req.Warranty)
	}
	if len(req.OtherRequirements) > 0 {
		b.WriteString("\nOther requirements:\n")
		for _, o := range req.OtherRequirements {
			fmt.Fprintf(&b, "  - %s\n", o)
		}
	}

	b.WriteString("\nPlease reply to this email with your total price, a price per item, delivery time, payment terms and warranty. Keep the subject line unchanged.\n\nThank you.\n")
	return b.String()
}
