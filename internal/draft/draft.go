// Package draft reconciles the RFP draft a conversation builds up turn by
// turn. Fragments come from a text-generation backend and are untrusted:
// every function here is total, and a malformed sub-field is dropped on its
// own without affecting the rest of the fragment.
package draft

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/kalambet/procura/internal/loose"
	"github.com/kalambet/procura/internal/money"
	"github.com/kalambet/procura/internal/rfp"
)

// Draft is the in-progress RFP of a conversation. A nil Requirements means
// neither side ever supplied requirements, which is distinct from an empty
// requirements object.
type Draft struct {
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"description,omitempty"`
	Budget          *float64          `json:"budget,omitempty"`
	Deadline        string            `json:"deadline,omitempty"`
	Requirements    *rfp.Requirements `json:"requirements,omitempty"`
	VendorsSelected []string          `json:"vendorsSelected,omitempty"`
	MissingFields   []string          `json:"missingFields,omitempty"`
}

// Clone returns a deep copy of d.
func (d Draft) Clone() Draft {
	out := d
	if d.Budget != nil {
		b := *d.Budget
		out.Budget = &b
	}
	if d.Requirements != nil {
		r := d.Requirements.Clone()
		out.Requirements = &r
	}
	if d.VendorsSelected != nil {
		out.VendorsSelected = append([]string(nil), d.VendorsSelected...)
	}
	if d.MissingFields != nil {
		out.MissingFields = append([]string(nil), d.MissingFields...)
	}
	return out
}

// Normalize folds an untrusted incoming fragment into existing and returns
// the merged draft. Neither argument is modified.
func Normalize(existing Draft, incoming map[string]any) Draft {
	return Merge(existing, Parse(incoming))
}

// FromJSON parses a stored draft. Anything unreadable yields an empty draft.
func FromJSON(data []byte) Draft {
	if len(data) == 0 {
		return Draft{}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Debug("draft: unreadable stored state, starting empty", "error", err)
		return Draft{}
	}
	return Parse(raw)
}

// Parse coerces one raw fragment into canonical shape:
//   - a string "requirements" is parsed as JSON or dropped;
//   - a top-level "items" (list, JSON string or plain string) moves into
//     requirements.items;
//   - a top-level "deliveryRequirements" moves into requirements.deliveryDays;
//   - "budget" and "deadline" drop empty and non-numeric values.
func Parse(raw map[string]any) Draft {
	var d Draft
	if raw == nil {
		return d
	}

	if s, ok := loose.String(raw["title"]); ok {
		d.Title = s
	}
	if s, ok := loose.String(raw["description"]); ok {
		d.Description = s
	}
	d.Budget = parseBudget(raw["budget"])
	if s, ok := raw["deadline"].(string); ok {
		d.Deadline = strings.TrimSpace(s)
	}

	if v, ok := raw["requirements"]; ok && v != nil {
		if r, ok := parseRequirements(v); ok {
			d.Requirements = &r
		} else {
			slog.Debug("draft: dropping malformed requirements", "value", v)
		}
	}

	if v, ok := raw["items"]; ok && v != nil {
		items := parseItems(v)
		if len(items) > 0 {
			if d.Requirements == nil {
				d.Requirements = &rfp.Requirements{}
			}
			d.Requirements.Items = append(d.Requirements.Items, items...)
		}
	}

	if v, ok := raw["deliveryRequirements"]; ok && v != nil {
		if days, ok := loose.Int(v); ok && days >= 0 {
			if d.Requirements == nil {
				d.Requirements = &rfp.Requirements{}
			}
			if d.Requirements.DeliveryDays == nil {
				d.Requirements.DeliveryDays = &days
			}
		}
	}

	if v, ok := raw["vendorsSelected"]; ok && v != nil {
		if list, ok := loose.Strings(v); ok {
			d.VendorsSelected = list
		}
	}
	if v, ok := raw["missingFields"]; ok && v != nil {
		if list, ok := loose.Strings(v); ok {
			d.MissingFields = list
		}
	}
	return d
}

func parseBudget(v any) *float64 {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		f, ok := money.ParseAmount(val)
		if !ok {
			return nil
		}
		return &f
	default:
		f, ok := loose.Float(val)
		if !ok || f < 0 {
			return nil
		}
		return &f
	}
}

func parseRequirements(v any) (rfp.Requirements, bool) {
	var m map[string]any
	switch val := v.(type) {
	case map[string]any:
		m = val
	case string:
		obj, err := loose.Object(val)
		if err != nil {
			return rfp.Requirements{}, false
		}
		m = obj
	default:
		return rfp.Requirements{}, false
	}

	var r rfp.Requirements
	if v, ok := m["items"]; ok && v != nil {
		r.Items = parseItems(v)
	}
	if days, ok := loose.Int(m["deliveryDays"]); ok && days >= 0 {
		r.DeliveryDays = &days
	}
	if s, ok := loose.String(m["paymentTerms"]); ok {
		r.PaymentTerms = s
	}
	if s, ok := loose.String(m["warranty"]); ok {
		r.Warranty = s
	}
	if v, ok := m["otherRequirements"]; ok && v != nil {
		if list, ok := loose.Strings(v); ok {
			r.OtherRequirements = list
		}
	}
	return r, true
}

// parseItems accepts a list of objects or names, a single object, a JSON
// string of either, or a plain string that becomes one item of that name.
func parseItems(v any) []rfp.Item {
	switch val := v.(type) {
	case []any:
		var out []rfp.Item
		for _, e := range val {
			if it, ok := parseItem(e); ok {
				out = append(out, it)
			}
		}
		return out
	case map[string]any:
		if it, ok := parseItem(val); ok {
			return []rfp.Item{it}
		}
		return nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			switch decoded.(type) {
			case []any, map[string]any:
				return parseItems(decoded)
			}
		}
		return []rfp.Item{{Name: s}}
	default:
		return nil
	}
}

type rawItem struct {
	Name           string `mapstructure:"name"`
	Item           string `mapstructure:"item"`
	Quantity       *int   `mapstructure:"quantity"`
	Specifications any    `mapstructure:"specifications"`
}

func parseItem(v any) (rfp.Item, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return rfp.Item{Name: s}, s != ""
	}
	m, ok := v.(map[string]any)
	if !ok {
		return rfp.Item{}, false
	}

	var ri rawItem
	if err := mapstructure.WeakDecode(m, &ri); err != nil {
		// Keep the item if only the quantity was unusable.
		rest := make(map[string]any, len(m))
		for k, v := range m {
			if k != "quantity" {
				rest[k] = v
			}
		}
		ri = rawItem{}
		if err := mapstructure.WeakDecode(rest, &ri); err != nil {
			slog.Debug("draft: dropping malformed item", "item", v, "error", err)
			return rfp.Item{}, false
		}
	}

	name := strings.TrimSpace(ri.Name)
	if name == "" {
		name = strings.TrimSpace(ri.Item)
	}
	if name == "" {
		return rfp.Item{}, false
	}
	it := rfp.Item{Name: name, Specifications: specText(ri.Specifications)}
	if ri.Quantity != nil && *ri.Quantity > 0 {
		q := *ri.Quantity
		it.Quantity = &q
	}
	return it, true
}

// specText flattens specifications given as a string, list or object.
func specText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []any:
		var parts []string
		for _, e := range val {
			if s, ok := loose.String(e); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			if s, ok := loose.String(val[k]); ok {
				parts = append(parts, fmt.Sprintf("%s: %s", k, s))
			}
		}
		return strings.Join(parts, ", ")
	default:
		s, _ := loose.String(val)
		return s
	}
}
