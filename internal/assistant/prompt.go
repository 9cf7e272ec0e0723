package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/procura/internal/engine"
	"github.com/kalambet/procura/internal/money"
	"github.com/kalambet/procura/internal/rfp"
)

const draftSystemPrompt = `You are a procurement assistant. You help the user turn a purchasing need into a Request for Proposal (RFP) that can be emailed to vendors. Your output must be ONLY a single valid JSON object with the fields "response", "stateUpdate" and "showSendButton". Do not include any other text, prose, or markdown.

Rules:
- "response" is what you say to the user. Ask for at most two missing details per turn.
- "stateUpdate" carries only the RFP fields learned or changed in this turn: title, description, budget (a number), deadline (YYYY-MM-DD), requirements (items with name, quantity and specifications; deliveryDays; paymentTerms; warranty; otherRequirements), vendorsSelected (vendor emails) and missingFields.
- Never repeat an item that is already in the current draft unless its quantity or specifications changed.
- If you cannot think of a title yet, use "Auto-generated title".
- Set "showSendButton" to true only when the draft has a title, a description, at least one item and at least one selected vendor, and the user has confirmed it.`

// BuildPrompt constructs the chat messages for one drafting turn. The current
// draft and the vendor directory are injected into the system message.
func BuildPrompt(history []engine.Message, state State, now time.Time) []engine.Message {
	var sb strings.Builder
	sb.WriteString(draftSystemPrompt)

	fmt.Fprintf(&sb, "\n\n[Today]\n%s", now.Format("2006-01-02"))

	if state.RFPID != "" {
		fmt.Fprintf(&sb, "\n\n[RFP]\nThis conversation already created RFP %s. Updates will be applied to it.", state.RFPID)
	}

	if body, err := json.MarshalIndent(state.Draft, "", "  "); err == nil && string(body) != "{}" {
		fmt.Fprintf(&sb, "\n\n[Current Draft]\n%s", body)
	}

	if len(state.Vendors) > 0 {
		sb.WriteString("\n\n[Vendors]")
		for _, v := range state.Vendors {
			fmt.Fprintf(&sb, "\n- %s <%s>", v.Name, v.Email)
			if v.Notes != "" {
				fmt.Fprintf(&sb, " (%s)", v.Notes)
			}
		}
	}

	messages := []engine.Message{
		{Role: "system", Content: sb.String()},
	}
	return append(messages, history...)
}

const narrativeSystemPrompt = `You are a procurement analyst comparing vendor proposals for one RFP. The scores were computed deterministically; do not change them or the ranking. Your output must be ONLY a single valid JSON object with the fields "summary", "recommendation", "reasoning" and "negotiationPoints" (a list of short strings). Keep the summary under 80 words.`

// BuildNarrativePrompt describes the RFP and its ranked evaluations.
func BuildNarrativePrompt(r rfp.RFP, evals []rfp.Evaluation) []engine.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RFP: %s\n", r.Title)
	if r.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", r.Description)
	}
	if r.Budget != nil {
		fmt.Fprintf(&sb, "Budget: %s\n", money.Format(*r.Budget))
	}
	if r.Requirements.DeliveryDays != nil {
		fmt.Fprintf(&sb, "Delivery required within: %d days\n", *r.Requirements.DeliveryDays)
	}

	sb.WriteString("\nProposals, best first:\n")
	for i, e := range evals {
		name := e.VendorName
		if name == "" {
			name = e.VendorID
		}
		c := e.Criteria
		fmt.Fprintf(&sb, "%d. %s: overall %d (price %d, delivery %d, requirements %d, payment %d, warranty %d, completeness %d, other %d)\n",
			i+1, name, e.OverallScore, c.Price, c.Delivery, c.Requirements, c.PaymentTerms, c.Warranty, c.Completeness, c.OtherRequirements)
		for _, s := range e.Strengths {
			fmt.Fprintf(&sb, "   + %s\n", s)
		}
		for _, w := range e.Weaknesses {
			fmt.Fprintf(&sb, "   - %s\n", w)
		}
		for _, cn := range e.Concerns {
			fmt.Fprintf(&sb, "   ! %s\n", cn)
		}
	}

	return []engine.Message{
		{Role: "system", Content: narrativeSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}
