// Package evaluation combines the per-criterion scorers into one weighted,
// explained score per proposal and ranks proposals of an RFP.
package evaluation

import (
	"sort"

	"github.com/kalambet/procura/internal/rfp"
	"github.com/kalambet/procura/internal/scoring"
)

// Weights of each criterion in the overall score. They sum to 1.
var Weights = struct {
	Price, Delivery, Requirements, PaymentTerms, Warranty, Completeness, OtherRequirements float64
}{
	Price:             0.25,
	Delivery:          0.20,
	Requirements:      0.30,
	PaymentTerms:      0.05,
	Warranty:          0.10,
	Completeness:      0.05,
	OtherRequirements: 0.05,
}

// Target is what a proposal is evaluated against.
type Target struct {
	Budget       *float64
	Requirements rfp.Requirements
}

// TargetOf returns the evaluation target of an RFP.
func TargetOf(r rfp.RFP) Target {
	return Target{Budget: r.Budget, Requirements: r.Requirements}
}

type results struct {
	price        scoring.PriceResult
	delivery     scoring.DeliveryResult
	requirements scoring.RequirementsResult
	payment      scoring.TermResult
	warranty     scoring.TermResult
	completeness scoring.CompletenessResult
	other        scoring.OtherResult
}

// Evaluate scores p against t. It is deterministic and does not modify p.
func Evaluate(p rfp.Proposal, vendorName string, t Target) rfp.Evaluation {
	text := freeText(p)
	req := t.Requirements

	r := results{
		price:        scoring.ScorePrice(resolveFloat(p, KeyTotalPrice), t.Budget),
		delivery:     scoring.ScoreDelivery(resolveInt(p, KeyDeliveryDays), req.DeliveryDays),
		requirements: scoring.ScoreRequirements(req.Items, resolveItemPrices(p), text),
		payment:      scoring.ScorePaymentTerms(resolveString(p, KeyPaymentTerms), req.PaymentTerms),
		warranty:     scoring.ScoreWarranty(resolveString(p, KeyWarranty), req.Warranty),
		completeness: scoring.ScoreCompleteness(resolveFloat(p, KeyCompleteness)),
		other:        scoring.ScoreOtherRequirements(req.OtherRequirements, text),
	}

	c := rfp.Criteria{
		Price:             r.price.Score,
		Delivery:          r.delivery.Score,
		Requirements:      r.requirements.Score,
		PaymentTerms:      r.payment.Score,
		Warranty:          r.warranty.Score,
		Completeness:      r.completeness.Score,
		OtherRequirements: r.other.Score,
	}

	fb := feedbackFor(r)
	return rfp.Evaluation{
		VendorID:     p.VendorID,
		VendorName:   vendorName,
		OverallScore: Overall(c),
		Criteria:     c,
		Strengths:    fb.strengths,
		Weaknesses:   fb.weaknesses,
		Concerns:     fb.concerns,
		Details: rfp.Details{
			PriceDeviation:     r.price.Deviation,
			MatchesBudget:      r.price.MatchesBudget,
			DeliveryDiff:       r.delivery.Diff,
			Items:              r.requirements.Items,
			UnmatchedOther:     r.other.Unmatched,
			PriceReason:        r.price.Reasoning,
			DeliveryReason:     r.delivery.Reasoning,
			RequirementsReason: r.requirements.Reasoning,
			PaymentReason:      r.payment.Reasoning,
			WarrantyReason:     r.warranty.Reasoning,
			CompletenessReason: r.completeness.Reasoning,
			OtherReason:        r.other.Reasoning,
		},
	}
}

// Overall is the weighted sum of the criteria, rounded half-up and kept in [0,100].
func Overall(c rfp.Criteria) int {
	sum := Weights.Price*float64(c.Price) +
		Weights.Delivery*float64(c.Delivery) +
		Weights.Requirements*float64(c.Requirements) +
		Weights.PaymentTerms*float64(c.PaymentTerms) +
		Weights.Warranty*float64(c.Warranty) +
		Weights.Completeness*float64(c.Completeness) +
		Weights.OtherRequirements*float64(c.OtherRequirements)
	score := scoring.Round(sum)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Candidate is a proposal to rank together with the name of its vendor.
type Candidate struct {
	Proposal   rfp.Proposal
	VendorName string
}

// EvaluateProposals evaluates every candidate against t and returns the
// evaluations best first.
func EvaluateProposals(t Target, candidates []Candidate) []rfp.Evaluation {
	out := make([]rfp.Evaluation, len(candidates))
	for i, c := range candidates {
		out[i] = Evaluate(c.Proposal, c.VendorName, t)
	}
	SortByScore(out)
	return out
}

// SortByScore orders evaluations by overall score, highest first. Equal
// scores keep their input order.
func SortByScore(evals []rfp.Evaluation) {
	sort.SliceStable(evals, func(i, j int) bool {
		return evals[i].OverallScore > evals[j].OverallScore
	})
}
