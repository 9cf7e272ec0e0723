package rfp

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// Status is the lifecycle state of an RFP.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusSent   Status = "sent"
	StatusClosed Status = "closed"
)

// CanTransition reports whether an RFP may move from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusSent
	case StatusSent:
		return to == StatusClosed || to == StatusSent
	}
	return false
}

// Item is a single line of an RFP. Two items with the same normalized name
// are the same item.
type Item struct {
	Name           string `json:"name"`
	Quantity       *int   `json:"quantity,omitempty"`
	Specifications string `json:"specifications,omitempty"`
}

// Key returns the normalized identity of the item.
func (i Item) Key() string {
	return NormalizeName(i.Name)
}

// NormalizeName lower-cases and trims a name for comparison.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Requirements is what an RFP asks vendors for. Empty strings are unset.
type Requirements struct {
	Items             []Item   `json:"items,omitempty"`
	DeliveryDays      *int     `json:"deliveryDays,omitempty"`
	PaymentTerms      string   `json:"paymentTerms,omitempty"`
	Warranty          string   `json:"warranty,omitempty"`
	OtherRequirements []string `json:"otherRequirements,omitempty"`
}

// IsEmpty reports whether no sub-field carries a value.
func (r Requirements) IsEmpty() bool {
	return len(r.Items) == 0 && r.DeliveryDays == nil && r.PaymentTerms == "" &&
		r.Warranty == "" && len(r.OtherRequirements) == 0
}

// Clone returns a deep copy.
func (r Requirements) Clone() Requirements {
	out := Requirements{
		PaymentTerms: r.PaymentTerms,
		Warranty:     r.Warranty,
	}
	if r.DeliveryDays != nil {
		d := *r.DeliveryDays
		out.DeliveryDays = &d
	}
	if r.Items != nil {
		out.Items = make([]Item, len(r.Items))
		for i, it := range r.Items {
			out.Items[i] = it
			if it.Quantity != nil {
				q := *it.Quantity
				out.Items[i].Quantity = &q
			}
		}
	}
	if r.OtherRequirements != nil {
		out.OtherRequirements = append([]string(nil), r.OtherRequirements...)
	}
	return out
}

// RFP is a request for proposal sent to vendors.
type RFP struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Description         string            `json:"description"`
	Budget              *float64          `json:"budget,omitempty"`
	Deadline            *time.Time        `json:"deadline,omitempty"`
	Requirements        Requirements      `json:"requirements"`
	Status              Status            `json:"status"`
	Comparison          *ComparisonResult `json:"comparison,omitempty"`
	ComparisonUpdatedAt *time.Time        `json:"comparisonUpdatedAt,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// Vendor is a supplier that can receive RFPs.
type Vendor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Contact   string    `json:"contact,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ItemPrice is one priced line of a vendor proposal.
type ItemPrice struct {
	Item       string   `json:"item"`
	Quantity   *int     `json:"quantity,omitempty"`
	UnitPrice  *float64 `json:"unitPrice,omitempty"`
	TotalPrice *float64 `json:"totalPrice,omitempty"`
}

// ProposalFields are the structured values read from a vendor reply.
// Nil means the reply did not state the value.
type ProposalFields struct {
	TotalPrice   *float64    `json:"totalPrice,omitempty"`
	ItemPrices   []ItemPrice `json:"itemPrices,omitempty"`
	DeliveryDays *int        `json:"deliveryDays,omitempty"`
	PaymentTerms *string     `json:"paymentTerms,omitempty"`
	Warranty     *string     `json:"warranty,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	Completeness *float64    `json:"completeness,omitempty"`
}

// Proposal is a vendor's response to an RFP. There is at most one per
// (RFPID, VendorID) pair.
type Proposal struct {
	ID          string         `json:"id"`
	RFPID       string         `json:"rfpId"`
	VendorID    string         `json:"vendorId"`
	RawReply    string         `json:"rawReply,omitempty"`
	Fields      ProposalFields `json:"fields"`
	ParsedData  map[string]any `json:"parsedData,omitempty"`
	Attachments []string       `json:"attachments,omitempty"`
	Evaluation  *Evaluation    `json:"evaluation,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Criteria holds the per-criterion scores of an evaluation.
type Criteria struct {
	Price             int `json:"price"`
	Delivery          int `json:"delivery"`
	Requirements      int `json:"requirements"`
	PaymentTerms      int `json:"paymentTerms"`
	Warranty          int `json:"warranty"`
	Completeness      int `json:"completeness"`
	OtherRequirements int `json:"otherRequirements"`
}

// Details is the evidence behind each criterion score.
type Details struct {
	PriceDeviation     *float64    `json:"priceDeviation,omitempty"`
	MatchesBudget      bool        `json:"matchesBudget"`
	DeliveryDiff       *int        `json:"deliveryDiff,omitempty"`
	Items              []ItemMatch `json:"items,omitempty"`
	UnmatchedOther     []string    `json:"unmatchedOther,omitempty"`
	PriceReason        string      `json:"priceReason"`
	DeliveryReason     string      `json:"deliveryReason"`
	RequirementsReason string      `json:"requirementsReason"`
	PaymentReason      string      `json:"paymentReason"`
	WarrantyReason     string      `json:"warrantyReason"`
	CompletenessReason string      `json:"completenessReason"`
	OtherReason        string      `json:"otherReason"`
}

// ItemMatch is the verdict for one required item.
type ItemMatch struct {
	Item              string `json:"item"`
	Matched           bool   `json:"matched"`
	RequiredQuantity  *int   `json:"requiredQuantity,omitempty"`
	SuppliedQuantity  *int   `json:"suppliedQuantity,omitempty"`
	QuantityMatches   bool   `json:"quantityMatches"`
	SpecificationsMet bool   `json:"specificationsMet"`
	Reason            string `json:"reason"`
}

// Evaluation is the derived score of a proposal. It is always regenerated
// as a whole, never edited.
type Evaluation struct {
	VendorID     string   `json:"vendorId"`
	VendorName   string   `json:"vendorName"`
	OverallScore int      `json:"overallScore"`
	Criteria     Criteria `json:"criteria"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Concerns     []string `json:"concerns"`
	Details      Details  `json:"details"`
}

// ComparisonResult is the cached cross-vendor comparison of an RFP.
type ComparisonResult struct {
	Summary           string         `json:"summary"`
	Recommendation    string         `json:"recommendation"`
	Reasoning         string         `json:"reasoning"`
	Ranking           []string       `json:"ranking"`
	Concerns          []string       `json:"concerns"`
	NegotiationPoints []string       `json:"negotiationPoints"`
	Scores            map[string]int `json:"scores"`
	Evaluations       []Evaluation   `json:"evaluations"`
}

// VendorReply is a normalized inbound email.
type VendorReply struct {
	VendorEmail string    `json:"vendorEmail"`
	Subject     string    `json:"subject"`
	BodyText    string    `json:"bodyText"`
	Attachments []string  `json:"attachments,omitempty"`
	MessageID   string    `json:"messageId,omitempty"`
	InReplyTo   string    `json:"inReplyTo,omitempty"`
	ReceivedAt  time.Time `json:"receivedAt"`
}
