// parse.go - Response decoding shared by the provider adapters

package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bosocmputer/product_identify/internal/canonical"
	"github.com/bosocmputer/product_identify/pkg/models"
)

const (
	// defaultConfidence applies when a provider omits the field
	defaultConfidence = 0.5
	// salvagedConfidenceCap bounds results recovered by field regex
	salvagedConfidenceCap = 0.4
)

var fenceRe = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9_-]*\\s*\n?(.*?)\\s*```\\s*$")

// stripCodeFences removes an optional ```json ... ``` wrapper.
func stripCodeFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// parseStrict is a plain json.Unmarshal of the fence-stripped text.
func parseStrict(raw string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// LenientDecode repairs informal JSON before decoding it into v.
// Repairs, in order:
//  1. strip a code fence wrapper
//  2. cut the outermost {...} or [...] value out of any surrounding prose
//  3. replace typographic quotes with ASCII quotes
//  4. rewrite single-quoted keys and values as double-quoted strings
//  5. drop commas that directly precede } or ]
//  6. escape raw control characters inside strings
func LenientDecode(raw string, v interface{}) error {
	s := stripCodeFences(raw)
	s = extractJSONValue(s)
	s = normalizeQuotes(s)
	s = repairJSON(s)
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("lenient decode failed: %w", err)
	}
	return nil
}

// extractJSONValue returns the text from the first opening bracket to the last
// matching closing bracket, or s unchanged when there is none.
func extractJSONValue(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return s[start:]
	}
	return s[start : end+1]
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'", "‚", "'",
)

func normalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// repairJSON does steps 4-6 of LenientDecode in a single scan that tracks
// whether it is inside a string and which quote opened it.
func repairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	var quote byte // 0 outside strings, else '"' or '\''

	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote == 0 {
			switch c {
			case '"', '\'':
				quote = c
				b.WriteByte('"')
			case ',':
				j := i + 1
				for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
					j++
				}
				if j < len(s) && (s[j] == '}' || s[j] == ']') {
					continue
				}
				b.WriteByte(c)
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '\\' && i+1 < len(s):
			i++
			if quote == '\'' && s[i] == '\'' {
				// \' is not a valid JSON escape
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
		case c == quote:
			quote = 0
			b.WriteByte('"')
		case c == '"':
			// a bare double quote inside a single-quoted string
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Alternate key names seen across providers, matched case-insensitively.
var fieldAliases = map[string][]string{
	"name":         {"name", "productname", "product_name", "title", "product"},
	"brand":        {"brand", "brandname", "brand_name", "manufacturer"},
	"unit":         {"unit", "quantity", "size", "net_quantity", "pack_size", "netweight", "net_weight"},
	"category":     {"category", "product_category"},
	"description":  {"description", "desc", "details"},
	"sku":          {"sku", "code", "barcode", "ean", "upc"},
	"mrp":          {"mrp", "max_retail_price", "maximum_retail_price"},
	"sellingPrice": {"sellingprice", "selling_price", "sale_price", "price"},
	"hsn":          {"hsn", "hsn_code", "hsncode"},
	"gst":          {"gst", "gst_rate", "gstrate", "tax_rate"},
	"variant":      {"variant", "flavour", "flavor", "variety"},
	"confidence":   {"confidence", "score", "confidence_score"},
}

func lookupField(m map[string]interface{}, field string) interface{} {
	for _, alias := range fieldAliases[field] {
		if v, ok := m[alias]; ok && v != nil {
			return v
		}
	}
	return nil
}

// resultFromMap maps a decoded JSON object onto a ProviderResult.
func resultFromMap(raw map[string]interface{}, source string) models.ProviderResult {
	m := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		m[strings.ToLower(strings.TrimSpace(k))] = v
	}

	confidence := defaultConfidence
	if c, ok := canonical.ToFloat(lookupField(m, "confidence")); ok {
		confidence = canonical.ClampConfidence(c)
	}

	return models.ProviderResult{
		Name:         canonical.ToString(lookupField(m, "name")),
		Brand:        canonical.ToString(lookupField(m, "brand")),
		Unit:         canonical.ToString(lookupField(m, "unit")),
		Category:     canonical.ToString(lookupField(m, "category")),
		Description:  canonical.ToString(lookupField(m, "description")),
		SKU:          canonical.ToString(lookupField(m, "sku")),
		MRP:          canonical.ToFloatPtr(lookupField(m, "mrp")),
		SellingPrice: canonical.ToFloatPtr(lookupField(m, "sellingPrice")),
		HSN:          canonical.ToString(lookupField(m, "hsn")),
		GST:          canonical.ToFloatPtr(lookupField(m, "gst")),
		Variant:      canonical.ToString(lookupField(m, "variant")),
		Confidence:   confidence,
		Source:       source,
	}
}

// singleFromValue accepts an object, a one-element list, or a {"products": [...]} wrapper.
func singleFromValue(v interface{}, source string) (*models.ProviderResult, bool) {
	list := listFromValue(v, source)
	if len(list) == 0 {
		return nil, false
	}
	return &list[0], true
}

// listFromValue accepts a list, a {"products"|"items": [...]} wrapper, or a single object.
func listFromValue(v interface{}, source string) []models.ProviderResult {
	switch t := v.(type) {
	case []interface{}:
		out := make([]models.ProviderResult, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				if r := resultFromMap(m, source); r.Name != "" {
					out = append(out, r)
				}
			}
		}
		return out
	case map[string]interface{}:
		for _, key := range []string{"products", "items", "results"} {
			if inner, ok := t[key].([]interface{}); ok {
				return listFromValue(inner, source)
			}
		}
		if r := resultFromMap(t, source); r.Name != "" {
			return []models.ProviderResult{r}
		}
	}
	return nil
}

var salvageFields = []string{"name", "brand", "category", "description", "unit"}

var salvagePatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(salvageFields)+1)
	for _, f := range append(salvageFields, "confidence") {
		if f == "confidence" {
			m[f] = regexp.MustCompile(`"confidence"\s*:\s*"?([0-9.]+)`)
			continue
		}
		m[f] = regexp.MustCompile(`"` + f + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	}
	return m
}()

// salvageResult pulls individual fields out of text that is not valid JSON.
// It returns false when not even a name can be found.
func salvageResult(raw, source string) (*models.ProviderResult, bool) {
	fields := make(map[string]string, len(salvageFields))
	for _, f := range salvageFields {
		if m := salvagePatterns[f].FindStringSubmatch(raw); m != nil {
			fields[f] = unescapeJSONString(m[1])
		}
	}
	if strings.TrimSpace(fields["name"]) == "" {
		return nil, false
	}

	confidence := salvagedConfidenceCap
	if m := salvagePatterns["confidence"].FindStringSubmatch(raw); m != nil {
		if c, err := strconv.ParseFloat(m[1], 64); err == nil {
			if c = canonical.ClampConfidence(c); c < confidence {
				confidence = c
			}
		}
	}

	return &models.ProviderResult{
		Name:        strings.TrimSpace(fields["name"]),
		Brand:       strings.TrimSpace(fields["brand"]),
		Category:    strings.TrimSpace(fields["category"]),
		Description: strings.TrimSpace(fields["description"]),
		Unit:        strings.TrimSpace(fields["unit"]),
		Confidence:  confidence,
		Source:      source,
	}, true
}

func unescapeJSONString(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}
