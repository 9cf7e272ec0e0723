// Package extract reads structured proposal fields out of a vendor's email
// reply with the text-generation backend.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/procura/internal/assistant"
	"github.com/kalambet/procura/internal/engine"
	"github.com/kalambet/procura/internal/evaluation"
	"github.com/kalambet/procura/internal/loose"
	"github.com/kalambet/procura/internal/money"
	"github.com/kalambet/procura/internal/rfp"
)

const (
	extractionTimeout = 60 * time.Second
	maxBodyChars      = 12000
)

const systemPrompt = `You extract the commercial terms of a vendor's reply to a Request for Proposal. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- Use numbers for prices and days, without currency symbols.
- Omit a field, or set it to null, when the reply does not state it. Never guess.
- "itemPrices" lists each quoted line as {"item", "quantity", "unitPrice", "totalPrice"}.
- "completeness" is a number between 0 and 1: the share of the RFP's requested information the reply provides.
- "notes" summarizes conditions, exclusions and anything else relevant in one or two sentences.`

// Extractor parses vendor replies into proposal fields.
type Extractor struct {
	client  assistant.Chatter
	model   string
	timeout time.Duration
}

// New creates an Extractor. An empty model uses the backend's default.
func New(client assistant.Chatter, model string) *Extractor {
	return &Extractor{client: client, model: model, timeout: extractionTimeout}
}

// Extract returns the structured fields of reply and the raw decoded object.
// On any failure (timeout, malformed JSON, backend error) it returns zero
// values: the proposal is still stored with its raw reply and scores low on
// the missing fields.
func (e *Extractor) Extract(ctx context.Context, reply rfp.VendorReply, r rfp.RFP) (rfp.ProposalFields, map[string]any) {
	if strings.TrimSpace(reply.BodyText) == "" {
		return rfp.ProposalFields{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.client.Chat(ctx, e.model, BuildPrompt(reply, r), fieldsSchema())
	if err != nil {
		slog.Warn("proposal extraction chat failed", "vendor", reply.VendorEmail, "error", err)
		return rfp.ProposalFields{}, nil
	}

	obj, err := loose.Object(raw)
	if err != nil {
		slog.Warn("proposal extraction returned malformed JSON", "vendor", reply.VendorEmail, "error", err)
		return rfp.ProposalFields{}, nil
	}
	return FieldsFrom(obj), obj
}

// FieldsFrom coerces a decoded extraction object into typed fields. Values
// that cannot be coerced are left nil.
func FieldsFrom(obj map[string]any) rfp.ProposalFields {
	var f rfp.ProposalFields
	if v, ok := loose.Float(obj[evaluation.KeyTotalPrice]); ok && v >= 0 {
		f.TotalPrice = &v
	}
	f.ItemPrices = evaluation.ItemPricesFrom(obj[evaluation.KeyItemPrices])
	if v, ok := loose.Int(obj[evaluation.KeyDeliveryDays]); ok && v >= 0 {
		f.DeliveryDays = &v
	}
	f.PaymentTerms = optString(obj[evaluation.KeyPaymentTerms])
	f.Warranty = optString(obj[evaluation.KeyWarranty])
	f.Notes = optString(obj[evaluation.KeyNotes])
	if v, ok := loose.Float(obj[evaluation.KeyCompleteness]); ok && v >= 0 {
		// Some models answer in percent.
		if v > 1 && v <= 100 {
			v /= 100
		}
		if v <= 1 {
			f.Completeness = &v
		}
	}
	if f.TotalPrice == nil && len(f.ItemPrices) > 0 {
		f.TotalPrice = sumLines(f.ItemPrices)
	}
	return f
}

func optString(v any) *string {
	s, ok := loose.String(v)
	if !ok {
		return nil
	}
	return &s
}

// sumLines totals the priced lines, or returns nil if any line has no price.
func sumLines(lines []rfp.ItemPrice) *float64 {
	var total float64
	for _, l := range lines {
		switch {
		case l.TotalPrice != nil:
			total += *l.TotalPrice
		case l.UnitPrice != nil && l.Quantity != nil:
			total += *l.UnitPrice * float64(*l.Quantity)
		default:
			return nil
		}
	}
	return &total
}

// BuildPrompt describes what the RFP asked for and includes the reply body.
func BuildPrompt(reply rfp.VendorReply, r rfp.RFP) []engine.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RFP: %s\n", r.Title)
	if r.Budget != nil {
		fmt.Fprintf(&sb, "Budget: %s\n", money.Format(*r.Budget))
	}
	if len(r.Requirements.Items) > 0 {
		sb.WriteString("Requested items:\n")
		for _, it := range r.Requirements.Items {
			sb.WriteString("- " + it.Name)
			if it.Quantity != nil {
				fmt.Fprintf(&sb, " x%d", *it.Quantity)
			}
			sb.WriteString("\n")
		}
	}

	body := reply.BodyText
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	fmt.Fprintf(&sb, "\nReply from %s\nSubject: %s\n", reply.VendorEmail, reply.Subject)
	if len(reply.Attachments) > 0 {
		fmt.Fprintf(&sb, "Attachments (not included): %s\n", strings.Join(reply.Attachments, ", "))
	}
	sb.WriteString("\n" + body)

	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

func fieldsSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			evaluation.KeyTotalPrice:   {Type: "number", Description: "Total quoted price"},
			evaluation.KeyItemPrices:   {Type: "array", Description: "Quoted lines"},
			evaluation.KeyDeliveryDays: {Type: "integer", Description: "Days until delivery"},
			evaluation.KeyPaymentTerms: {Type: "string", Description: "Payment terms offered"},
			evaluation.KeyWarranty:     {Type: "string", Description: "Warranty offered"},
			evaluation.KeyNotes:        {Type: "string", Description: "Other conditions"},
			evaluation.KeyCompleteness: {Type: "number", Description: "0 to 1 share of requested information provided"},
		},
	}
}
