package research

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rxcheck/coverage-api/llm"
)

// rawReply mirrors the research reply with price data left untyped; the
// backend returns anything from a flat number to nested per-pharmacy maps.
type rawReply struct {
	Alternatives     []DrugSuggestion `json:"alternatives"`
	PriceComparisons json.RawMessage  `json:"priceComparisons"`
	Prices           json.RawMessage  `json:"prices"`
	PAStrategies     []string         `json:"paStrategies"`
	PatientPrograms  []string         `json:"patientPrograms"`
	Summary          string           `json:"summary"`
	Sources          []string         `json:"sources"`
}

// parseResearchReply extracts a Result from free-text backend output,
// normalizing whatever price shape arrived into the flat PriceComparisons
// list.
func parseResearchReply(raw string) (Result, error) {
	var reply rawReply
	if err := llm.ExtractJSON(raw, &reply); err != nil {
		return Result{}, err
	}

	result := Result{
		Alternatives:    reply.Alternatives,
		PAStrategies:    reply.PAStrategies,
		PatientPrograms: reply.PatientPrograms,
		Summary:         reply.Summary,
		Sources:         reply.Sources,
	}

	priceBlob := reply.PriceComparisons
	if len(priceBlob) == 0 {
		priceBlob = reply.Prices
	}
	if len(priceBlob) > 0 {
		var parsed any
		if err := json.Unmarshal(priceBlob, &parsed); err == nil {
			result.PriceComparisons = flattenPrices("", "", parsed)
		}
	}

	return result, nil
}

// flattenPrices walks an arbitrary price payload and emits flat quotes.
// Supported shapes: a bare number or currency string, an array of quote
// objects, and maps nesting pharmacy and/or dosage levels.
func flattenPrices(pharmacy, dosage string, node any) []PriceQuote {
	var out []PriceQuote

	switch v := node.(type) {
	case float64:
		out = append(out, PriceQuote{Pharmacy: pharmacy, Price: v, Dosage: dosage})
	case string:
		if price, ok := coercePrice(v); ok {
			out = append(out, PriceQuote{Pharmacy: pharmacy, Price: price, Dosage: dosage})
		}
	case []any:
		for _, item := range v {
			out = append(out, flattenPrices(pharmacy, dosage, item)...)
		}
	case map[string]any:
		if quote, ok := quoteFromObject(pharmacy, dosage, v); ok {
			out = append(out, quote)
			break
		}
		// Not a quote object: treat keys as pharmacy names first, then as
		// dosage labels.
		for key, child := range v {
			if pharmacy == "" {
				out = append(out, flattenPrices(key, dosage, child)...)
			} else {
				out = append(out, flattenPrices(pharmacy, key, child)...)
			}
		}
	}

	return out
}

// quoteFromObject interprets an object carrying an explicit price field.
func quoteFromObject(pharmacy, dosage string, obj map[string]any) (PriceQuote, bool) {
	priceVal, ok := obj["price"]
	if !ok {
		priceVal, ok = obj["cash_price"]
	}
	if !ok {
		return PriceQuote{}, false
	}

	var price float64
	switch p := priceVal.(type) {
	case float64:
		price = p
	case string:
		coerced, cok := coercePrice(p)
		if !cok {
			return PriceQuote{}, false
		}
		price = coerced
	default:
		return PriceQuote{}, false
	}

	quote := PriceQuote{Pharmacy: pharmacy, Dosage: dosage, Price: price}
	if name, ok := obj["pharmacy"].(string); ok && name != "" {
		quote.Pharmacy = name
	}
	if d, ok := obj["dosage"].(string); ok && d != "" {
		quote.Dosage = d
	}
	if notes, ok := obj["notes"].(string); ok {
		quote.Notes = notes
	}
	return quote, true
}

// coercePrice converts currency-formatted strings ("$12.50", "1,234.00") to
// a numeric amount.
func coercePrice(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		// Strings like "12.50 USD" or "about $15": keep the first numeric
		// token if there is one.
		for _, field := range strings.Fields(cleaned) {
			field = strings.TrimPrefix(field, "$")
			if p, ferr := strconv.ParseFloat(field, 64); ferr == nil {
				return p, true
			}
		}
		return 0, false
	}
	return price, true
}
