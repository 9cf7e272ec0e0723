// Package scoring holds the pure per-criterion scoring functions used to
// evaluate vendor proposals against RFP requirements.
//
// Every scorer returns an integer score in [0,100]. A value missing from the
// proposal is penalized; a requirement missing from the RFP yields the
// neutral score of 80. When both are missing the missing-value rule wins.
package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kalambet/procura/internal/money"
	"github.com/kalambet/procura/internal/rfp"
)

const (
	neutralScore = 80
	missingTerms = 50
)

// Round rounds half away from zero for the non-negative values scores use.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func clamp(lo, hi, v float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// PriceResult is the price criterion.
type PriceResult struct {
	Score int
	// Deviation is (price - budget) / budget * 100; nil without price or budget.
	Deviation     *float64
	MatchesBudget bool
	Reasoning     string
}

// ScorePrice rewards prices under budget more generously than it penalizes
// prices over budget.
func ScorePrice(price, budget *float64) PriceResult {
	if price == nil {
		return PriceResult{Score: 0, Reasoning: "No price provided"}
	}
	if budget == nil || *budget <= 0 {
		return PriceResult{Score: neutralScore, Reasoning: fmt.Sprintf("Quoted %s; no budget specified", money.Format(*price))}
	}

	dev := money.Percent(*price, *budget)
	abs := math.Abs(dev)
	var score float64
	if dev <= 0 {
		switch {
		case abs <= 5:
			score = 100
		case abs <= 10:
			score = 95
		case abs <= 20:
			score = 85
		case abs <= 30:
			score = 75
		case abs <= 50:
			score = 60
		default:
			score = math.Max(30, 70-0.5*abs)
		}
	} else {
		switch {
		case abs <= 5:
			score = 95
		case abs <= 10:
			score = 85
		case abs <= 20:
			score = 70
		case abs <= 30:
			score = 50
		case abs <= 50:
			score = 30
		default:
			score = math.Max(0, 40-0.3*abs)
		}
	}

	direction := "under"
	if dev > 0 {
		direction = "over"
	}
	return PriceResult{
		Score:         Round(score),
		Deviation:     &dev,
		MatchesBudget: abs <= 10,
		Reasoning: fmt.Sprintf("Quoted %s against a budget of %s (%.1f%% %s budget)",
			money.Format(*price), money.Format(*budget), abs, direction),
	}
}

// DeliveryResult is the delivery criterion.
type DeliveryResult struct {
	Score int
	// Diff is proposed minus required days; nil without both values.
	Diff      *int
	Reasoning string
}

// ScoreDelivery scores proposed delivery days against the required days.
func ScoreDelivery(proposed, required *int) DeliveryResult {
	if proposed == nil {
		return DeliveryResult{Score: 0, Reasoning: "No delivery timeline provided"}
	}
	if required == nil {
		return DeliveryResult{Score: neutralScore, Reasoning: fmt.Sprintf("Delivery in %d days; no deadline specified", *proposed)}
	}

	diff := *proposed - *required
	var score float64
	switch {
	case diff <= 0:
		score = clamp(90, 100, 100-2*math.Abs(float64(diff)))
	case diff <= 7:
		score = 75
	case diff <= 14:
		score = 60
	case diff <= 30:
		score = 40
	default:
		score = math.Max(0, 30-float64(diff)/10)
	}

	reason := fmt.Sprintf("Delivery in %d days meets the %d-day requirement", *proposed, *required)
	if diff > 0 {
		reason = fmt.Sprintf("Delivery in %d days is %d days later than the %d-day requirement", *proposed, diff, *required)
	}
	return DeliveryResult{Score: Round(score), Diff: &diff, Reasoning: reason}
}

// RequirementsResult is the item requirements criterion.
type RequirementsResult struct {
	Score     int
	Matched   int
	Total     int
	Items     []rfp.ItemMatch
	Reasoning string
}

// ScoreRequirements scores the share of required items the proposal meets.
func ScoreRequirements(required []rfp.Item, itemPrices []rfp.ItemPrice, freeText string) RequirementsResult {
	items := Match(required, itemPrices, freeText)
	if len(required) == 0 {
		return RequirementsResult{Score: 100, Items: items, Reasoning: "No specific items required"}
	}
	matched := 0
	for _, m := range items {
		if m.Matched {
			matched++
		}
	}
	return RequirementsResult{
		Score:     Round(100 * float64(matched) / float64(len(required))),
		Matched:   matched,
		Total:     len(required),
		Items:     items,
		Reasoning: fmt.Sprintf("%d of %d required items matched", matched, len(required)),
	}
}

// TermResult is used by the payment terms and warranty criteria.
type TermResult struct {
	Score     int
	Provided  bool
	Required  bool
	Matches   bool
	Reasoning string
}

var paymentKeywords = []string{"net", "days", "30", "60", "90", "advance", "upon delivery", "installment"}

// ScorePaymentTerms compares payment terms through a fixed keyword
// vocabulary, falling back to substring containment.
func ScorePaymentTerms(proposed *string, required string) TermResult {
	if proposed == nil || strings.TrimSpace(*proposed) == "" {
		return TermResult{Score: missingTerms, Required: required != "", Reasoning: "Payment terms not specified"}
	}
	if strings.TrimSpace(required) == "" {
		return TermResult{Score: neutralScore, Provided: true, Reasoning: fmt.Sprintf("Payment terms %q; none required", *proposed)}
	}

	p := strings.ToLower(*proposed)
	r := strings.ToLower(required)
	var wanted []string
	for _, kw := range paymentKeywords {
		if strings.Contains(r, kw) {
			wanted = append(wanted, kw)
		}
	}

	var ok bool
	if len(wanted) > 0 {
		ok = anyTokenIn(wanted, p)
	} else {
		ok = strings.Contains(p, r) || strings.Contains(r, p)
	}

	res := TermResult{Provided: true, Required: true, Matches: ok}
	if ok {
		res.Score = 100
		res.Reasoning = fmt.Sprintf("Payment terms %q match %q", *proposed, required)
	} else {
		res.Score = 60
		res.Reasoning = fmt.Sprintf("Payment terms %q differ from %q", *proposed, required)
	}
	return res
}

var firstInt = regexp.MustCompile(`\d+`)

func leadingNumber(s string) (int, bool) {
	m := firstInt.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ScoreWarranty compares the first number of each warranty string and
// falls back to substring containment when either has none.
func ScoreWarranty(proposed *string, required string) TermResult {
	if proposed == nil || strings.TrimSpace(*proposed) == "" {
		return TermResult{Score: missingTerms, Required: required != "", Reasoning: "Warranty not specified"}
	}
	if strings.TrimSpace(required) == "" {
		return TermResult{Score: neutralScore, Provided: true, Reasoning: fmt.Sprintf("Warranty %q; none required", *proposed)}
	}

	res := TermResult{Provided: true, Required: true}
	pn, pok := leadingNumber(*proposed)
	rn, rok := leadingNumber(required)
	if pok && rok {
		res.Matches = pn >= rn
		if res.Matches {
			res.Score = 100
			res.Reasoning = fmt.Sprintf("Warranty %q meets the %q requirement", *proposed, required)
		} else {
			res.Score = 50
			res.Reasoning = fmt.Sprintf("Warranty %q is shorter than the %q requirement", *proposed, required)
		}
		return res
	}

	p := strings.ToLower(*proposed)
	r := strings.ToLower(required)
	res.Matches = strings.Contains(p, r) || strings.Contains(r, p)
	if res.Matches {
		res.Score = 100
		res.Reasoning = fmt.Sprintf("Warranty %q matches %q", *proposed, required)
	} else {
		res.Score = 60
		res.Reasoning = fmt.Sprintf("Warranty %q differs from %q", *proposed, required)
	}
	return res
}

// CompletenessResult is the completeness criterion.
type CompletenessResult struct {
	Score     int
	Available bool
	Reasoning string
}

// ScoreCompleteness converts a completeness ratio in [0,1] to a score.
func ScoreCompleteness(completeness *float64) CompletenessResult {
	if completeness == nil || math.IsNaN(*completeness) {
		return CompletenessResult{Score: missingTerms, Reasoning: "Completeness score not available"}
	}
	score := Round(clamp(0, 100, *completeness*100))
	res := CompletenessResult{Score: score, Available: true}
	switch {
	case score >= 80:
		res.Reasoning = "Proposal is comprehensive and addresses most requirements"
	case score >= 60:
		res.Reasoning = "Proposal is reasonably complete with some gaps"
	default:
		res.Reasoning = "Proposal is missing significant information"
	}
	return res
}

// OtherResult is the other-requirements criterion.
type OtherResult struct {
	Score     int
	Unmatched []string
	Reasoning string
}

// ScoreOtherRequirements checks that each free-form requirement has at least
// one significant token present in the proposal text.
func ScoreOtherRequirements(required []string, proposalText string) OtherResult {
	if len(required) == 0 {
		return OtherResult{Score: 100, Reasoning: "No other requirements specified"}
	}
	text := strings.ToLower(proposalText)
	matched := 0
	var unmatched []string
	for _, req := range required {
		tokens := significantTokens(req)
		if len(tokens) == 0 {
			tokens = []string{strings.ToLower(strings.TrimSpace(req))}
		}
		if anyTokenIn(tokens, text) {
			matched++
		} else {
			unmatched = append(unmatched, req)
		}
	}
	return OtherResult{
		Score:     Round(100 * float64(matched) / float64(len(required))),
		Unmatched: unmatched,
		Reasoning: fmt.Sprintf("%d of %d other requirements addressed", matched, len(required)),
	}
}
