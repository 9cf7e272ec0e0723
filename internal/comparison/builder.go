package comparison

import (
	"fmt"
	"strings"

	"github.com/kalambet/procura/internal/evaluation"
	"github.com/kalambet/procura/internal/rfp"
)

// Narrative is the prose part of a comparison. It usually comes from the
// text-generation backend; Fallback produces one without it.
type Narrative struct {
	Summary           string   `json:"summary"`
	Recommendation    string   `json:"recommendation"`
	Reasoning         string   `json:"reasoning"`
	NegotiationPoints []string `json:"negotiationPoints,omitempty"`
}

// Build assembles the comparison of r from its proposal evaluations. A nil
// or incomplete n is filled in from Fallback. evals is not modified.
func Build(r rfp.RFP, evals []rfp.Evaluation, n *Narrative) rfp.ComparisonResult {
	ranked := append([]rfp.Evaluation(nil), evals...)
	evaluation.SortByScore(ranked)

	res := rfp.ComparisonResult{
		Ranking:           make([]string, 0, len(ranked)),
		Concerns:          []string{},
		NegotiationPoints: []string{},
		Scores:            make(map[string]int, len(ranked)),
		Evaluations:       ranked,
	}
	names := labels(ranked)
	for i, e := range ranked {
		name := names[i]
		res.Ranking = append(res.Ranking, name)
		res.Scores[name] = e.OverallScore
		for _, c := range e.Concerns {
			res.Concerns = append(res.Concerns, name+": "+c)
		}
	}
	if res.Evaluations == nil {
		res.Evaluations = []rfp.Evaluation{}
	}

	fb := Fallback(r, ranked)
	if n == nil {
		n = &fb
	}
	res.Summary = firstNonEmpty(n.Summary, fb.Summary)
	res.Recommendation = firstNonEmpty(n.Recommendation, fb.Recommendation)
	res.Reasoning = firstNonEmpty(n.Reasoning, fb.Reasoning)
	if len(n.NegotiationPoints) > 0 {
		res.NegotiationPoints = append(res.NegotiationPoints, n.NegotiationPoints...)
	} else {
		res.NegotiationPoints = append(res.NegotiationPoints, fb.NegotiationPoints...)
	}
	return res
}

// Fallback derives a narrative from the scores alone. ranked must be sorted
// best first.
func Fallback(r rfp.RFP, ranked []rfp.Evaluation) Narrative {
	if len(ranked) == 0 {
		return Narrative{
			Summary:        fmt.Sprintf("No proposals have been received for %q yet.", r.Title),
			Recommendation: "Wait for vendor replies before deciding.",
			Reasoning:      "There is nothing to compare.",
		}
	}

	best := ranked[0]
	n := Narrative{
		Summary: fmt.Sprintf("%d proposal(s) received for %q. %s leads with %d/100.",
			len(ranked), r.Title, displayName(best), best.OverallScore),
		Recommendation: fmt.Sprintf("Proceed with %s.", displayName(best)),
	}

	c := best.Criteria
	reason := fmt.Sprintf("%s scores %d overall (price %d, delivery %d, requirements %d).",
		displayName(best), best.OverallScore, c.Price, c.Delivery, c.Requirements)
	if len(ranked) > 1 {
		next := ranked[1]
		if next.OverallScore == best.OverallScore {
			reason += fmt.Sprintf(" %s is tied; compare the qualitative terms before deciding.", displayName(next))
		} else {
			reason += fmt.Sprintf(" The next best, %s, scores %d.", displayName(next), next.OverallScore)
		}
	}
	if len(best.Concerns) > 0 {
		reason += " Open concerns: " + strings.Join(best.Concerns, "; ") + "."
	}
	n.Reasoning = reason

	for _, e := range ranked {
		n.NegotiationPoints = append(n.NegotiationPoints, negotiationPoints(e)...)
	}
	return n
}

func negotiationPoints(e rfp.Evaluation) []string {
	name := displayName(e)
	var out []string
	d := e.Details
	if d.PriceDeviation != nil && *d.PriceDeviation > 0 {
		out = append(out, fmt.Sprintf("Ask %s to close the %.0f%% gap to budget", name, *d.PriceDeviation))
	}
	if d.DeliveryDiff != nil && *d.DeliveryDiff > 0 {
		out = append(out, fmt.Sprintf("Ask %s to shorten delivery by %d days", name, *d.DeliveryDiff))
	}
	for _, it := range d.Items {
		if !it.Matched {
			out = append(out, fmt.Sprintf("Confirm whether %s can supply %s", name, it.Item))
		}
	}
	for _, req := range d.UnmatchedOther {
		out = append(out, fmt.Sprintf("Confirm %s with %s", strings.ToLower(req), name))
	}
	return out
}

func displayName(e rfp.Evaluation) string {
	if e.VendorName != "" {
		return e.VendorName
	}
	return e.VendorID
}

// labels names each evaluation for the ranking and score map. Vendors that
// share a display name are told apart by their id.
func labels(evals []rfp.Evaluation) []string {
	count := make(map[string]int, len(evals))
	for _, e := range evals {
		count[displayName(e)]++
	}
	out := make([]string, len(evals))
	for i, e := range evals {
		name := displayName(e)
		if count[name] > 1 && e.VendorID != "" && e.VendorID != name {
			name = fmt.Sprintf("%s (%s)", name, e.VendorID)
		}
		out[i] = name
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
