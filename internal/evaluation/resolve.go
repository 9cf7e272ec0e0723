package evaluation

import (
	"github.com/kalambet/procura/internal/loose"
	"github.com/kalambet/procura/internal/rfp"
)

// Keys shared by the structured proposal fields and the parsed-data blob.
const (
	KeyTotalPrice   = "totalPrice"
	KeyItemPrices   = "itemPrices"
	KeyDeliveryDays = "deliveryDays"
	KeyPaymentTerms = "paymentTerms"
	KeyWarranty     = "warranty"
	KeyNotes        = "notes"
	KeyCompleteness = "completeness"
)

// ResolveField returns the value of key for p. The structured field wins;
// when it is unset the value comes from p.ParsedData, since replies may
// populate either place. Every criterion reads its inputs through here.
func ResolveField(p rfp.Proposal, key string) (any, bool) {
	f := p.Fields
	switch key {
	case KeyTotalPrice:
		if f.TotalPrice != nil {
			return *f.TotalPrice, true
		}
	case KeyItemPrices:
		if len(f.ItemPrices) > 0 {
			return f.ItemPrices, true
		}
	case KeyDeliveryDays:
		if f.DeliveryDays != nil {
			return *f.DeliveryDays, true
		}
	case KeyPaymentTerms:
		if f.PaymentTerms != nil {
			return *f.PaymentTerms, true
		}
	case KeyWarranty:
		if f.Warranty != nil {
			return *f.Warranty, true
		}
	case KeyNotes:
		if f.Notes != nil {
			return *f.Notes, true
		}
	case KeyCompleteness:
		if f.Completeness != nil {
			return *f.Completeness, true
		}
	}
	v, ok := p.ParsedData[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func resolveFloat(p rfp.Proposal, key string) *float64 {
	v, ok := ResolveField(p, key)
	if !ok {
		return nil
	}
	f, ok := loose.Float(v)
	if !ok {
		return nil
	}
	return &f
}

func resolveInt(p rfp.Proposal, key string) *int {
	v, ok := ResolveField(p, key)
	if !ok {
		return nil
	}
	i, ok := loose.Int(v)
	if !ok {
		return nil
	}
	return &i
}

func resolveString(p rfp.Proposal, key string) *string {
	v, ok := ResolveField(p, key)
	if !ok {
		return nil
	}
	s, ok := loose.String(v)
	if !ok {
		return nil
	}
	return &s
}

func resolveItemPrices(p rfp.Proposal) []rfp.ItemPrice {
	v, ok := ResolveField(p, KeyItemPrices)
	if !ok {
		return nil
	}
	if typed, ok := v.([]rfp.ItemPrice); ok {
		return typed
	}
	return ItemPricesFrom(v)
}

// ItemPricesFrom decodes a loosely typed list of priced lines. Lines without
// an item name are dropped.
func ItemPricesFrom(v any) []rfp.ItemPrice {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []rfp.ItemPrice
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, ok := loose.String(m["item"])
		if !ok {
			if name, ok = loose.String(m["name"]); !ok {
				continue
			}
		}
		line := rfp.ItemPrice{Item: name}
		if q, ok := loose.Int(m["quantity"]); ok {
			line.Quantity = &q
		}
		if u, ok := loose.Float(m["unitPrice"]); ok {
			line.UnitPrice = &u
		}
		if t, ok := loose.Float(m["totalPrice"]); ok {
			line.TotalPrice = &t
		} else if t, ok := loose.Float(m["price"]); ok {
			line.TotalPrice = &t
		}
		out = append(out, line)
	}
	return out
}

// freeText is the text the fuzzy matchers scan: notes followed by the raw reply.
func freeText(p rfp.Proposal) string {
	notes := ""
	if n := resolveString(p, KeyNotes); n != nil {
		notes = *n
	}
	if notes == "" {
		return p.RawReply
	}
	return notes + "\n" + p.RawReply
}
