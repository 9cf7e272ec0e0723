package evaluation

import (
	"fmt"
	"math"
)

type feedback struct {
	strengths  []string
	weaknesses []string
	concerns   []string
}

func (f *feedback) strength(s string) { f.strengths = append(f.strengths, s) }
func (f *feedback) weakness(s string) { f.weaknesses = append(f.weaknesses, s) }
func (f *feedback) concern(s string)  { f.concerns = append(f.concerns, s) }

// feedbackRules run in order; each appends to the shared feedback.
var feedbackRules = []func(r results, f *feedback){
	priceFeedback,
	deliveryFeedback,
	requirementsFeedback,
	paymentFeedback,
	warrantyFeedback,
	completenessFeedback,
	otherFeedback,
}

func feedbackFor(r results) feedback {
	f := feedback{strengths: []string{}, weaknesses: []string{}, concerns: []string{}}
	for _, rule := range feedbackRules {
		rule(r, &f)
	}
	return f
}

func priceFeedback(r results, f *feedback) {
	p := r.price
	switch {
	case p.Score >= 90:
		f.strength("Excellent price competitiveness")
	case p.Score < 60:
		if p.Deviation == nil {
			f.weakness("No price provided")
			return
		}
		dev := *p.Deviation
		if dev > 0 {
			f.weakness(fmt.Sprintf("Price is %.0f%% over budget", dev))
		} else {
			f.weakness(fmt.Sprintf("Price is %.0f%% under budget, which may indicate missing scope", -dev))
		}
		if math.Abs(dev) > 30 {
			f.concern(fmt.Sprintf("Significant budget deviation of %.0f%%", math.Abs(dev)))
		}
	}
}

func deliveryFeedback(r results, f *feedback) {
	d := r.delivery
	switch {
	case d.Score >= 90:
		f.strength("Delivery meets or beats the required timeline")
	case d.Score < 60:
		if d.Diff == nil {
			f.weakness("No delivery timeline provided")
			return
		}
		f.weakness(fmt.Sprintf("Delivery is %d days later than required", *d.Diff))
		if *d.Diff > 14 {
			f.concern(fmt.Sprintf("Delivery delay of %d days may impact operations", *d.Diff))
		}
	}
}

func requirementsFeedback(r results, f *feedback) {
	q := r.requirements
	switch {
	case q.Score >= 90:
		f.strength("Meets all or nearly all item requirements")
	case q.Score < 70:
		f.weakness(fmt.Sprintf("%d of %d required items not met", q.Total-q.Matched, q.Total))
		f.concern("Unmet item requirements may disqualify this proposal")
	}
}

func paymentFeedback(r results, f *feedback) {
	p := r.payment
	switch {
	case p.Score == 100:
		f.strength("Payment terms match requirements")
	case p.Required && !p.Provided:
		f.weakness("Payment terms not specified")
	case p.Required && !p.Matches:
		f.weakness("Payment terms do not match requirements")
	}
}

func warrantyFeedback(r results, f *feedback) {
	w := r.warranty
	switch {
	case w.Score == 100:
		f.strength("Warranty meets requirements")
	case w.Required && !w.Provided:
		f.weakness("Warranty not specified")
	case w.Required && !w.Matches:
		f.weakness("Warranty does not meet requirements")
	}
}

func completenessFeedback(r results, f *feedback) {
	c := r.completeness
	switch {
	case c.Score >= 80:
		f.strength("Comprehensive proposal")
	case c.Score < 60:
		if c.Available {
			f.weakness("Proposal is missing significant information")
		} else {
			f.weakness("Proposal completeness could not be assessed")
		}
		f.concern("Missing information may hide additional costs or risks")
	}
}

func otherFeedback(r results, f *feedback) {
	if n := len(r.other.Unmatched); n > 0 {
		f.weakness(fmt.Sprintf("%d other requirement(s) not addressed", n))
	}
}
