package mail

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"

	"github.com/kalambet/procura/internal/rfp"
)

const maxPartBytes = 1 << 20

// ParseReply reads an RFC 5322 message into a VendorReply. The body is the
// first text/plain part, or the text of the first text/html part when the
// message has no plain text. Attachments are listed by filename only.
func ParseReply(r io.Reader) (rfp.VendorReply, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return rfp.VendorReply{}, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	var reply rfp.VendorReply
	h := mr.Header
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		reply.VendorEmail = strings.ToLower(from[0].Address)
	}
	reply.Subject, _ = h.Subject()
	reply.MessageID, _ = h.MessageID()
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		reply.InReplyTo = ids[0]
	}
	if date, err := h.Date(); err == nil {
		reply.ReceivedAt = date.UTC()
	}

	var plain, htmlBody string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				slog.Debug("unknown charset in reply part", "error", err)
				continue
			}
			return reply, fmt.Errorf("reading part: %w", err)
		}

		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := ph.ContentType()
			body, err := io.ReadAll(io.LimitReader(p.Body, maxPartBytes))
			if err != nil {
				return reply, fmt.Errorf("reading body: %w", err)
			}
			switch {
			case ct == "text/plain" && plain == "":
				plain = string(body)
			case ct == "text/html" && htmlBody == "":
				htmlBody = string(body)
			}
		case *mail.AttachmentHeader:
			name, _ := ph.Filename()
			if name == "" {
				name = "unnamed attachment"
			}
			reply.Attachments = append(reply.Attachments, name)
		}
	}

	switch {
	case strings.TrimSpace(plain) != "":
		reply.BodyText = strings.TrimSpace(plain)
	case htmlBody != "":
		reply.BodyText = HTMLText(htmlBody)
	}
	if reply.ReceivedAt.IsZero() {
		reply.ReceivedAt = time.Now().UTC()
	}
	return reply, nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "ul": true, "ol": true,
}

// HTMLText returns the visible text of an HTML document with block elements
// on their own lines.
func HTMLText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseLines(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" || tag == "head" {
				skip++
			}
			if blockElements[tag] {
				b.WriteString("\n")
			}
			if tag == "td" || tag == "th" {
				b.WriteString(" ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style" || tag == "head") && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				b.WriteString("\n")
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
