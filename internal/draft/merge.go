package draft

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kalambet/procura/internal/rfp"
)

// PlaceholderTitle is the title a backend emits when it has nothing better.
const PlaceholderTitle = "auto-generated title"

// IsPlaceholder reports whether title is the placeholder sentinel.
func IsPlaceholder(title string) bool {
	return strings.EqualFold(strings.TrimSpace(title), PlaceholderTitle)
}

// Merge overlays incoming on existing. Set scalars in incoming win;
// requirements merge per sub-key, except items, which are concatenated and
// deduplicated by normalized name keeping the first occurrence.
func Merge(existing, incoming Draft) Draft {
	out := existing.Clone()
	in := incoming.Clone()

	if in.Title != "" {
		out.Title = in.Title
	}
	if in.Description != "" {
		out.Description = in.Description
	}
	if in.Budget != nil {
		out.Budget = in.Budget
	}
	if in.Deadline != "" {
		out.Deadline = in.Deadline
	}
	if in.VendorsSelected != nil {
		out.VendorsSelected = in.VendorsSelected
	}
	if in.MissingFields != nil {
		out.MissingFields = in.MissingFields
	}

	out.Requirements = mergeRequirements(out.Requirements, in.Requirements)

	if IsPlaceholder(out.Title) && out.Description != "" {
		out.Title = TitleFromDescription(out.Description)
	}
	return out
}

func mergeRequirements(existing, incoming *rfp.Requirements) *rfp.Requirements {
	if existing == nil && incoming == nil {
		return nil
	}
	var out rfp.Requirements
	if existing != nil {
		out = *existing
	}
	if incoming != nil {
		if incoming.DeliveryDays != nil {
			out.DeliveryDays = incoming.DeliveryDays
		}
		if incoming.PaymentTerms != "" {
			out.PaymentTerms = incoming.PaymentTerms
		}
		if incoming.Warranty != "" {
			out.Warranty = incoming.Warranty
		}
		if incoming.OtherRequirements != nil {
			out.OtherRequirements = incoming.OtherRequirements
		}
		if incoming.Items != nil {
			out.Items = append(append([]rfp.Item(nil), out.Items...), incoming.Items...)
		}
	}
	out.Items = dedupItems(out.Items)
	return &out
}

func dedupItems(items []rfp.Item) []rfp.Item {
	if items == nil {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]rfp.Item, 0, len(items))
	for _, it := range items {
		key := it.Key()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

const (
	titleMin = 40
	titleMax = 50
)

// TitleFromDescription derives a short title from the first words of a
// description. Titles longer than 50 characters are cut at a word boundary
// between 40 and 50 characters when there is one and end with "...".
func TitleFromDescription(desc string) string {
	s := strings.Join(strings.Fields(desc), " ")
	if utf8.RuneCountInString(s) <= titleMax {
		return s
	}
	runes := []rune(s)
	cut := -1
	for i := titleMax; i >= titleMin; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	if cut < 0 {
		cut = titleMax - 3
	}
	head := strings.TrimRightFunc(string(runes[:cut]), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return head + "..."
}
