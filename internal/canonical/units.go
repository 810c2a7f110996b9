// units.go - Pack size parsing, GST snapping and numeric coercion

package canonical

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const unitAlternation = `ml|ltrs?|litres?|liters?|l|cl|kgs?|gms?|grams?|g|mg|oz|pcs|pc|pieces`

var (
	multiPackRe = regexp.MustCompile(`(?i)(\d+)\s*(?:x|×|\*)\s*(\d+(?:\.\d+)?)\s*(` + unitAlternation + `)\b`)
	singlePackRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(` + unitAlternation + `)\b`)
	containerRe = regexp.MustCompile(`(?i)\b(bottle|jar|pack|pouch|box|can|tin|tube|sachet|packet|carton|bag|refill)s?\b`)

	currencyRe = regexp.MustCompile(`(?i)(₹|rs\.?|inr|\$|,|%|\s)`)
)

var unitAliases = map[string]string{
	"ml": "mL", "cl": "cL",
	"l": "L", "ltr": "L", "ltrs": "L", "litre": "L", "litres": "L", "liter": "L", "liters": "L",
	"kg": "kg", "kgs": "kg",
	"g": "g", "gm": "g", "gms": "g", "gram": "g", "grams": "g",
	"mg": "mg", "oz": "oz",
	"pc": "pcs", "pcs": "pcs", "pieces": "pcs",
}

// AllowedGSTRates is the fixed slab set, in tie-break order
var AllowedGSTRates = []float64{0, 5, 12, 18, 28}

// ParseCanonicalUnit turns free text such as "2 X 200 ML BOTTLE" into "2 x 200 mL bottle".
// It returns "" when no quantity+unit can be found.
func ParseCanonicalUnit(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var out string
	if m := multiPackRe.FindStringSubmatch(text); m != nil {
		out = m[1] + " x " + m[2] + " " + normalizeUnit(m[3])
	} else if m := singlePackRe.FindStringSubmatch(text); m != nil {
		out = m[1] + " " + normalizeUnit(m[2])
	} else {
		return ""
	}

	if m := containerRe.FindStringSubmatch(text); m != nil {
		out += " " + strings.ToLower(m[1])
	}
	return out
}

func normalizeUnit(token string) string {
	if canon, ok := unitAliases[strings.ToLower(token)]; ok {
		return canon
	}
	return strings.ToLower(token)
}

// ClampGstRate snaps a GST guess to the nearest allowed slab; ties go to the earlier slab.
func ClampGstRate(rate float64) float64 {
	if math.IsNaN(rate) {
		return AllowedGSTRates[0]
	}
	best := AllowedGSTRates[0]
	bestDiff := math.Abs(rate - best)
	for _, r := range AllowedGSTRates[1:] {
		if d := math.Abs(rate - r); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best
}

// ToFloat coerces numbers and price-like strings ("₹1,299.00", "18%") to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		cleaned := currencyRe.ReplaceAllString(n, "")
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToFloatPtr is ToFloat for nullable fields.
func ToFloatPtr(v interface{}) *float64 {
	f, ok := ToFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// ToString renders scalar JSON values as trimmed strings.
func ToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
