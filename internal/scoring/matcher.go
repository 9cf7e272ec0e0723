package scoring

import (
	"fmt"
	"strings"

	"github.com/kalambet/procura/internal/rfp"
)

// Match checks every required item against the priced lines of a proposal
// and, failing that, against its free text (notes and raw reply).
// Matching is by substring in either direction on normalized names, so
// "laptop" also matches "laptop bag".
func Match(required []rfp.Item, itemPrices []rfp.ItemPrice, freeText string) []rfp.ItemMatch {
	if len(required) == 0 {
		return []rfp.ItemMatch{}
	}

	text := strings.ToLower(freeText)
	var names []string
	for _, ip := range itemPrices {
		names = append(names, strings.ToLower(ip.Item))
	}
	combined := text + " " + strings.Join(names, " ")

	out := make([]rfp.ItemMatch, 0, len(required))
	for _, item := range required {
		out = append(out, matchItem(item, itemPrices, text, combined))
	}
	return out
}

func matchItem(item rfp.Item, itemPrices []rfp.ItemPrice, text, combined string) rfp.ItemMatch {
	name := item.Key()
	m := rfp.ItemMatch{
		Item:             item.Name,
		RequiredQuantity: item.Quantity,
	}

	line, found := findLine(name, itemPrices)
	if found {
		m.SuppliedQuantity = line.Quantity
		m.QuantityMatches = item.Quantity == nil ||
			(line.Quantity != nil && *line.Quantity == *item.Quantity)
	} else if name != "" && strings.Contains(text, name) {
		found = true
		m.QuantityMatches = true
	}
	m.SpecificationsMet = specsMet(item.Specifications, combined)
	m.Matched = found && m.QuantityMatches && m.SpecificationsMet

	switch {
	case !found:
		m.Reason = fmt.Sprintf("%s not found in proposal", item.Name)
	case !m.QuantityMatches:
		m.Reason = fmt.Sprintf("%s offered in quantity %s, required %d", item.Name, quantityText(m.SuppliedQuantity), *item.Quantity)
	case !m.SpecificationsMet:
		m.Reason = fmt.Sprintf("%s offered but specifications not addressed", item.Name)
	default:
		m.Reason = fmt.Sprintf("%s offered as required", item.Name)
	}
	return m
}

func findLine(name string, itemPrices []rfp.ItemPrice) (rfp.ItemPrice, bool) {
	if name == "" {
		return rfp.ItemPrice{}, false
	}
	for _, ip := range itemPrices {
		offered := rfp.NormalizeName(ip.Item)
		if offered == "" {
			continue
		}
		if strings.Contains(offered, name) || strings.Contains(name, offered) {
			return ip, true
		}
	}
	return rfp.ItemPrice{}, false
}

// specsMet requires at least one significant token (longer than three
// characters) of the specification to appear in text. A specification
// without such tokens constrains nothing.
func specsMet(specs, text string) bool {
	tokens := significantTokens(specs)
	if len(tokens) == 0 {
		return true
	}
	return anyTokenIn(tokens, text)
}

func significantTokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		if len([]rune(tok)) > 3 {
			out = append(out, tok)
		}
	}
	return out
}

func anyTokenIn(tokens []string, text string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

func quantityText(q *int) string {
	if q == nil {
		return "unspecified"
	}
	return fmt.Sprintf("%d", *q)
}
