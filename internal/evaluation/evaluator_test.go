package evaluation

import (
	"math"
	"reflect"
	"testing"

	"github.com/kalambet/procura/internal/rfp"
)

func ptr[T any](v T) *T { return &v }

func laptopTarget() Target {
	return Target{
		Budget: ptr(10000.0),
		Requirements: rfp.Requirements{
			Items:        []rfp.Item{{Name: "Laptop", Quantity: ptr(20)}},
			DeliveryDays: ptr(30),
			PaymentTerms: "Net 30",
			Warranty:     "2 years",
		},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestWeights_SumToOne(t *testing.T) {
	w := Weights
	sum := w.Price + w.Delivery + w.Requirements + w.PaymentTerms + w.Warranty + w.Completeness + w.OtherRequirements
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("weights sum = %v, want 1", sum)
	}
}

func TestOverall_Bounds(t *testing.T) {
	if got := Overall(rfp.Criteria{}); got != 0 {
		t.Errorf("Overall(zero) = %d, want 0", got)
	}
	all := rfp.Criteria{
		Price: 100, Delivery: 100, Requirements: 100, PaymentTerms: 100,
		Warranty: 100, Completeness: 100, OtherRequirements: 100,
	}
	if got := Overall(all); got != 100 {
		t.Errorf("Overall(all 100) = %d, want 100", got)
	}
}

func TestEvaluate_ScoreAlwaysInRange(t *testing.T) {
	proposals := []rfp.Proposal{
		{},
		{RawReply: "laptops available"},
		{Fields: rfp.ProposalFields{TotalPrice: ptr(1e9), DeliveryDays: ptr(10000), Completeness: ptr(-3.0)}},
		{Fields: rfp.ProposalFields{TotalPrice: ptr(0.0), DeliveryDays: ptr(0), Completeness: ptr(9.0)}},
	}
	for i, p := range proposals {
		e := Evaluate(p, "v", laptopTarget())
		if e.OverallScore < 0 || e.OverallScore > 100 {
			t.Errorf("proposal %d: OverallScore = %d, out of range", i, e.OverallScore)
		}
	}
}

func TestEvaluate_NeutralDefaults(t *testing.T) {
	p := rfp.Proposal{Fields: rfp.ProposalFields{
		TotalPrice:   ptr(5000.0),
		DeliveryDays: ptr(12),
		PaymentTerms: ptr("Net 60"),
		Warranty:     ptr("1 year"),
	}}
	e := Evaluate(p, "Acme", Target{})
	c := e.Criteria
	if c.Price != 80 || c.Delivery != 80 || c.PaymentTerms != 80 || c.Warranty != 80 {
		t.Errorf("criteria = %+v, want price/delivery/payment/warranty all 80", c)
	}
}

// Scenario: laptops at 5% under budget with no delivery estimate and no
// delivery requirement. A missing delivery estimate scores 0.
func TestEvaluate_LaptopScenario(t *testing.T) {
	target := Target{
		Budget:       ptr(10000.0),
		Requirements: rfp.Requirements{Items: []rfp.Item{{Name: "Laptop", Quantity: ptr(20)}}},
	}
	p := rfp.Proposal{
		VendorID: "v1",
		Fields: rfp.ProposalFields{
			TotalPrice: ptr(9500.0),
			ItemPrices: []rfp.ItemPrice{{Item: "Laptop", TotalPrice: ptr(9500.0), Quantity: ptr(20)}},
		},
	}

	e := Evaluate(p, "Acme", target)
	if e.Criteria.Price != 100 {
		t.Errorf("Price = %d, want 100", e.Criteria.Price)
	}
	if e.Criteria.Requirements != 100 {
		t.Errorf("Requirements = %d, want 100", e.Criteria.Requirements)
	}
	if e.Criteria.Delivery != 0 {
		t.Errorf("Delivery = %d, want 0", e.Criteria.Delivery)
	}
	if e.OverallScore != 70 {
		t.Errorf("OverallScore = %d, want 70", e.OverallScore)
	}

	p.Fields.TotalPrice = ptr(9000.0)
	e = Evaluate(p, "Acme", target)
	if e.Criteria.Price != 95 {
		t.Errorf("Price at 10%% under = %d, want 95", e.Criteria.Price)
	}
	if e.OverallScore != 69 {
		t.Errorf("OverallScore at 10%% under = %d, want 69", e.OverallScore)
	}
}

func strongProposal() rfp.Proposal {
	return rfp.Proposal{
		VendorID: "strong",
		Fields: rfp.ProposalFields{
			TotalPrice:   ptr(10500.0),
			ItemPrices:   []rfp.ItemPrice{{Item: "Laptop", Quantity: ptr(20)}},
			DeliveryDays: ptr(35),
			PaymentTerms: ptr("Net 30"),
			Warranty:     ptr("3 years"),
			Completeness: ptr(0.5),
		},
	}
}

func weakProposal() rfp.Proposal {
	return rfp.Proposal{
		VendorID: "weak",
		Fields: rfp.ProposalFields{
			TotalPrice:   ptr(12000.0),
			ItemPrices:   []rfp.ItemPrice{{Item: "Laptop", Quantity: ptr(20)}},
			DeliveryDays: ptr(60),
			PaymentTerms: ptr("50% advance"),
			Warranty:     ptr("1 year"),
			Completeness: ptr(0.7),
		},
	}
}

func TestEvaluateProposals_HighestFirst(t *testing.T) {
	got := EvaluateProposals(laptopTarget(), []Candidate{
		{Proposal: weakProposal(), VendorName: "Weak Co"},
		{Proposal: strongProposal(), VendorName: "Strong Co"},
	})
	if len(got) != 2 {
		t.Fatalf("got %d evaluations, want 2", len(got))
	}
	if got[0].OverallScore != 91 || got[1].OverallScore != 72 {
		t.Fatalf("scores = %d, %d, want 91, 72", got[0].OverallScore, got[1].OverallScore)
	}
	if got[0].VendorName != "Strong Co" {
		t.Errorf("first = %q, want Strong Co", got[0].VendorName)
	}
}

func TestSortByScore_StableTies(t *testing.T) {
	evals := []rfp.Evaluation{
		{VendorName: "a", OverallScore: 70},
		{VendorName: "b", OverallScore: 90},
		{VendorName: "c", OverallScore: 70},
		{VendorName: "d", OverallScore: 90},
	}
	SortByScore(evals)
	var names []string
	for _, e := range evals {
		names = append(names, e.VendorName)
	}
	if want := []string{"b", "d", "a", "c"}; !reflect.DeepEqual(names, want) {
		t.Errorf("order = %v, want %v", names, want)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	p := weakProposal()
	a := Evaluate(p, "Weak Co", laptopTarget())
	b := Evaluate(p, "Weak Co", laptopTarget())
	if !reflect.DeepEqual(a, b) {
		t.Error("Evaluate returned different results for the same input")
	}
	if *p.Fields.TotalPrice != 12000 {
		t.Error("Evaluate modified its input")
	}
}

func TestEvaluate_Feedback(t *testing.T) {
	e := Evaluate(strongProposal(), "Strong Co", laptopTarget())
	for _, s := range []string{"Excellent price competitiveness", "Meets all or nearly all item requirements", "Payment terms match requirements", "Warranty meets requirements"} {
		if !contains(e.Strengths, s) {
			t.Errorf("Strengths missing %q: %v", s, e.Strengths)
		}
	}
	if !contains(e.Weaknesses, "Proposal is missing significant information") {
		t.Errorf("Weaknesses = %v", e.Weaknesses)
	}

	over := rfp.Proposal{Fields: rfp.ProposalFields{
		TotalPrice:   ptr(15000.0),
		DeliveryDays: ptr(60),
		PaymentTerms: ptr("cash"),
	}}
	e = Evaluate(over, "Over Co", laptopTarget())
	wantWeak := []string{
		"Price is 50% over budget",
		"Delivery is 30 days later than required",
		"1 of 1 required items not met",
		"Payment terms do not match requirements",
		"Warranty not specified",
		"Proposal completeness could not be assessed",
	}
	for _, w := range wantWeak {
		if !contains(e.Weaknesses, w) {
			t.Errorf("Weaknesses missing %q: %v", w, e.Weaknesses)
		}
	}
	wantConcerns := []string{
		"Significant budget deviation of 50%",
		"Delivery delay of 30 days may impact operations",
		"Unmet item requirements may disqualify this proposal",
		"Missing information may hide additional costs or risks",
	}
	for _, c := range wantConcerns {
		if !contains(e.Concerns, c) {
			t.Errorf("Concerns missing %q: %v", c, e.Concerns)
		}
	}
}

func TestEvaluate_OtherRequirementsWeakness(t *testing.T) {
	target := Target{Requirements: rfp.Requirements{OtherRequirements: []string{"On-site installation", "Carbon neutral shipping"}}}
	e := Evaluate(rfp.Proposal{RawReply: "Installation is included."}, "v", target)
	if !contains(e.Weaknesses, "1 other requirement(s) not addressed") {
		t.Errorf("Weaknesses = %v", e.Weaknesses)
	}
	if e.Criteria.OtherRequirements != 50 {
		t.Errorf("OtherRequirements = %d, want 50", e.Criteria.OtherRequirements)
	}
}

func TestResolveField_FallsBackToParsedData(t *testing.T) {
	p := rfp.Proposal{
		ParsedData: map[string]any{
			"totalPrice":   "$9,500",
			"deliveryDays": "30 days",
			"paymentTerms": "Net 30",
			"itemPrices":   []any{map[string]any{"item": "Laptop", "quantity": 20.0}},
		},
	}
	e := Evaluate(p, "v", laptopTarget())
	if e.Criteria.Price != 100 {
		t.Errorf("Price = %d, want 100", e.Criteria.Price)
	}
	if e.Criteria.Delivery != 100 {
		t.Errorf("Delivery = %d, want 100", e.Criteria.Delivery)
	}
	if e.Criteria.Requirements != 100 {
		t.Errorf("Requirements = %d, want 100", e.Criteria.Requirements)
	}
	if e.Criteria.PaymentTerms != 100 {
		t.Errorf("PaymentTerms = %d, want 100", e.Criteria.PaymentTerms)
	}
}

func TestResolveField_StructuredWins(t *testing.T) {
	p := rfp.Proposal{
		Fields:     rfp.ProposalFields{TotalPrice: ptr(9000.0)},
		ParsedData: map[string]any{"totalPrice": 20000.0},
	}
	v, ok := ResolveField(p, KeyTotalPrice)
	if !ok || v != 9000.0 {
		t.Errorf("ResolveField = (%v, %v), want (9000, true)", v, ok)
	}
	if _, ok := ResolveField(p, KeyWarranty); ok {
		t.Error("ResolveField(warranty) ok = true, want false")
	}
}

func TestEvaluate_NotesFeedFuzzyMatch(t *testing.T) {
	target := Target{Requirements: rfp.Requirements{Items: []rfp.Item{{Name: "Projector"}}}}
	p := rfp.Proposal{Fields: rfp.ProposalFields{Notes: ptr("Two projectors included")}}
	if got := Evaluate(p, "v", target).Criteria.Requirements; got != 100 {
		t.Errorf("Requirements = %d, want 100", got)
	}
}
