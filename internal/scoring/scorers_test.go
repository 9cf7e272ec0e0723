package scoring

import (
	"testing"

	"github.com/kalambet/procura/internal/rfp"
)

func ptr[T any](v T) *T { return &v }

func TestRound_HalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{84.5, 85},
		{84.49, 84},
		{99.5, 100},
		{0.5, 1},
	}
	for _, tt := range tests {
		if got := Round(tt.in); got != tt.want {
			t.Errorf("Round(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestScorePrice_Curve(t *testing.T) {
	budget := ptr(10000.0)
	tests := []struct {
		price float64
		want  int
	}{
		{10000, 100},
		{9500, 100},
		{9000, 95},
		{8500, 85},
		{7500, 75},
		{5000, 60},
		{4000, 40},
		{1000, 30},
		{10500, 95},
		{11000, 85},
		{12000, 70},
		{13000, 50},
		{15000, 30},
		{20000, 10},
		{30000, 0},
	}
	for _, tt := range tests {
		got := ScorePrice(ptr(tt.price), budget)
		if got.Score != tt.want {
			t.Errorf("ScorePrice(%v, 10000).Score = %d, want %d", tt.price, got.Score, tt.want)
		}
	}
}

func TestScorePrice_MissingPrice(t *testing.T) {
	got := ScorePrice(nil, ptr(10000.0))
	if got.Score != 0 {
		t.Errorf("Score = %d, want 0", got.Score)
	}
	got = ScorePrice(nil, nil)
	if got.Score != 0 {
		t.Errorf("Score without price or budget = %d, want 0", got.Score)
	}
}

func TestScorePrice_NoBudget(t *testing.T) {
	got := ScorePrice(ptr(12345.0), nil)
	if got.Score != 80 {
		t.Errorf("Score = %d, want 80", got.Score)
	}
	if got.Deviation != nil {
		t.Errorf("Deviation = %v, want nil", *got.Deviation)
	}
}

func TestScorePrice_MatchesBudget(t *testing.T) {
	if !ScorePrice(ptr(11000.0), ptr(10000.0)).MatchesBudget {
		t.Error("MatchesBudget at +10% = false, want true")
	}
	if ScorePrice(ptr(11100.0), ptr(10000.0)).MatchesBudget {
		t.Error("MatchesBudget at +11% = true, want false")
	}
}

// TestScorePrice_Monotonic checks that moving toward the budget from below
// never lowers the score and moving away above never raises it.
func TestScorePrice_Monotonic(t *testing.T) {
	budget := ptr(1000.0)
	prev := -1
	for price := 0.0; price <= 1000; price += 5 {
		s := ScorePrice(ptr(price), budget).Score
		if s < prev {
			t.Fatalf("under budget: score dropped from %d to %d at price %v", prev, s, price)
		}
		prev = s
	}
	prev = 101
	for price := 1000.0; price <= 5000; price += 5 {
		s := ScorePrice(ptr(price), budget).Score
		if s > prev {
			t.Fatalf("over budget: score rose from %d to %d at price %v", prev, s, price)
		}
		prev = s
	}
}

func TestScoreDelivery(t *testing.T) {
	tests := []struct {
		name     string
		proposed *int
		required *int
		want     int
	}{
		{"missing", nil, ptr(30), 0},
		{"missing no requirement", nil, nil, 0},
		{"no requirement", ptr(10), nil, 80},
		{"on time", ptr(30), ptr(30), 100},
		{"two days early", ptr(28), ptr(30), 96},
		{"very early clamps", ptr(5), ptr(30), 90},
		{"late within a week", ptr(35), ptr(30), 75},
		{"late two weeks", ptr(44), ptr(30), 60},
		{"late a month", ptr(60), ptr(30), 40},
		{"late 60 days", ptr(90), ptr(30), 24},
		{"very late", ptr(600), ptr(30), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreDelivery(tt.proposed, tt.required)
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d", got.Score, tt.want)
			}
		})
	}
}

func TestScorePaymentTerms(t *testing.T) {
	tests := []struct {
		name     string
		proposed *string
		required string
		want     int
	}{
		{"missing", nil, "Net 30", 50},
		{"blank", ptr("  "), "Net 30", 50},
		{"no requirement", ptr("Net 45"), "", 80},
		{"keyword overlap", ptr("net 30 days"), "Net 30", 100},
		{"keyword mismatch", ptr("50% prepayment"), "Net 30", 60},
		{"upon delivery", ptr("Payment upon delivery"), "upon delivery", 100},
		{"substring fallback", ptr("Letter of credit"), "letter of credit", 100},
		{"substring fallback miss", ptr("Cash"), "letter of credit", 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScorePaymentTerms(tt.proposed, tt.required)
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d (%s)", got.Score, tt.want, got.Reasoning)
			}
		})
	}
}

func TestScoreWarranty(t *testing.T) {
	tests := []struct {
		name     string
		proposed *string
		required string
		want     int
	}{
		{"missing", nil, "1 year", 50},
		{"no requirement", ptr("2 years"), "", 80},
		{"longer", ptr("3 years"), "2 years", 100},
		{"equal", ptr("24 months"), "24 months", 100},
		{"shorter", ptr("1 year"), "2 years", 50},
		{"no number fallback match", ptr("Lifetime warranty"), "lifetime", 100},
		{"no number fallback miss", ptr("Standard"), "2 years", 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreWarranty(tt.proposed, tt.required)
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d (%s)", got.Score, tt.want, got.Reasoning)
			}
		})
	}
}

func TestScoreCompleteness(t *testing.T) {
	if got := ScoreCompleteness(nil); got.Score != 50 || got.Available {
		t.Errorf("ScoreCompleteness(nil) = %+v, want score 50 unavailable", got)
	}
	if got := ScoreCompleteness(nil); got.Reasoning != "Completeness score not available" {
		t.Errorf("Reasoning = %q", got.Reasoning)
	}
	tests := []struct {
		in   float64
		want int
	}{
		{0.86, 86},
		{0.6, 60},
		{0.2, 20},
		{1.4, 100},
	}
	for _, tt := range tests {
		if got := ScoreCompleteness(ptr(tt.in)); got.Score != tt.want {
			t.Errorf("ScoreCompleteness(%v) = %d, want %d", tt.in, got.Score, tt.want)
		}
	}
}

func TestScoreOtherRequirements(t *testing.T) {
	got := ScoreOtherRequirements(nil, "anything")
	if got.Score != 100 {
		t.Errorf("empty requirements Score = %d, want 100", got.Score)
	}

	got = ScoreOtherRequirements(
		[]string{"On-site installation", "ISO 9001 certification", "24/7 support"},
		"We provide installation and are ISO certified.",
	)
	// Only the installation requirement shares a significant token with the text.
	if got.Score != 33 {
		t.Errorf("Score = %d, want 33", got.Score)
	}
	if len(got.Unmatched) != 2 {
		t.Fatalf("Unmatched = %v, want 2 entries", got.Unmatched)
	}
	if got.Unmatched[0] != "ISO 9001 certification" {
		t.Errorf("Unmatched[0] = %q", got.Unmatched[0])
	}
}

func TestScoreRequirements_NoItems(t *testing.T) {
	got := ScoreRequirements(nil, nil, "")
	if got.Score != 100 {
		t.Errorf("Score = %d, want 100", got.Score)
	}
	if len(got.Items) != 0 {
		t.Errorf("Items = %v, want empty", got.Items)
	}
}

func TestScoreRequirements_Partial(t *testing.T) {
	required := []rfp.Item{
		{Name: "Laptop", Quantity: ptr(20)},
		{Name: "Monitor", Quantity: ptr(15)},
		{Name: "Docking station"},
	}
	prices := []rfp.ItemPrice{
		{Item: "Laptop 14\"", Quantity: ptr(20), TotalPrice: ptr(18000.0)},
		{Item: "Monitor 27\"", Quantity: ptr(10)},
	}
	got := ScoreRequirements(required, prices, "")
	if got.Matched != 1 || got.Total != 3 {
		t.Fatalf("Matched/Total = %d/%d, want 1/3", got.Matched, got.Total)
	}
	if got.Score != 33 {
		t.Errorf("Score = %d, want 33", got.Score)
	}
}
