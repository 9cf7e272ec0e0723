package draft

import (
	"reflect"
	"strings"
	"time"

	"github.com/kalambet/procura/internal/rfp"
)

// Eligible reports whether d can become an RFP: it needs a title and
// either a description or at least one item.
func Eligible(d Draft) bool {
	if strings.TrimSpace(d.Title) == "" {
		return false
	}
	if strings.TrimSpace(d.Description) != "" {
		return true
	}
	return d.Requirements != nil && len(d.Requirements.Items) > 0
}

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ParseDeadline interprets a draft deadline. Unrecognized values are nil.
func ParseDeadline(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// NewRFP builds a draft-status RFP from an eligible draft.
func NewRFP(d Draft, id string, now time.Time) rfp.RFP {
	r := rfp.RFP{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Deadline:    ParseDeadline(d.Deadline),
		Status:      rfp.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if IsPlaceholder(r.Title) && r.Description != "" {
		r.Title = TitleFromDescription(r.Description)
	}
	if d.Budget != nil {
		b := *d.Budget
		r.Budget = &b
	}
	if d.Requirements != nil {
		r.Requirements = d.Requirements.Clone()
	}
	return r
}

// Change lists what ApplyUpdate modified. Structural is set when budget or
// requirements changed, which makes any cached comparison stale.
type Change struct {
	Fields     []string
	Structural bool
}

// Changed reports whether anything was modified.
func (c Change) Changed() bool { return len(c.Fields) > 0 }

// ApplyUpdate applies a later conversation turn to an existing RFP. Only
// values the incoming fragment carries can change the RFP, so manual edits
// made since the RFP was created survive turns that do not mention them.
// A placeholder title is replaced by one derived from the incoming
// description, or ignored. Requirements merge into the RFP's own
// requirements with the same per-key and item rules as Merge, and only
// when the fragment carries a non-empty requirement sub-field.
func ApplyUpdate(current rfp.RFP, incoming Draft) (rfp.RFP, Change) {
	out := current
	var ch Change

	title := strings.TrimSpace(incoming.Title)
	if IsPlaceholder(title) {
		title = ""
		if d := strings.TrimSpace(incoming.Description); d != "" {
			title = TitleFromDescription(d)
		}
	}
	if title != "" && title != current.Title {
		out.Title = title
		ch.Fields = append(ch.Fields, "title")
	}
	if d := strings.TrimSpace(incoming.Description); d != "" && d != current.Description {
		out.Description = d
		ch.Fields = append(ch.Fields, "description")
	}
	if incoming.Budget != nil && (current.Budget == nil || *current.Budget != *incoming.Budget) {
		b := *incoming.Budget
		out.Budget = &b
		ch.Fields = append(ch.Fields, "budget")
		ch.Structural = true
	}
	if dl := ParseDeadline(incoming.Deadline); dl != nil && (current.Deadline == nil || !current.Deadline.Equal(*dl)) {
		out.Deadline = dl
		ch.Fields = append(ch.Fields, "deadline")
	}
	if incoming.Requirements != nil && !incoming.Requirements.IsEmpty() {
		base := current.Requirements.Clone()
		merged := mergeRequirements(&base, incoming.Requirements).Clone()
		if !reflect.DeepEqual(merged, current.Requirements.Clone()) {
			out.Requirements = merged
			ch.Fields = append(ch.Fields, "requirements")
			ch.Structural = true
		}
	}
	return out, ch
}
