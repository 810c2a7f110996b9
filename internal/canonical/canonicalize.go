// canonicalize.go - ProviderResult -> Product normalization

package canonical

import (
	"math"
	"regexp"
	"strings"

	"github.com/bosocmputer/product_identify/pkg/models"
)

var (
	nonDigitRe = regexp.MustCompile(`\D`)
	hsnRe      = regexp.MustCompile(`^\d{4,8}$`)
)

// Canonicalize cleans a provider guess into the pipeline's product record.
// barcode, when non-empty, takes precedence over the provider's sku.
func Canonicalize(r models.ProviderResult, barcode string) models.Product {
	unit := ParseCanonicalUnit(r.Unit)
	if unit == "" {
		unit = ParseCanonicalUnit(r.Name)
	}

	code := strings.TrimSpace(barcode)
	if code == "" {
		code = strings.TrimSpace(r.SKU)
	}

	p := models.Product{
		ProductName:  CanonicalizeName(r.Brand, r.Name),
		Brand:        TitleCase(collapse(r.Brand)),
		Variant:      TitleCase(collapse(r.Variant)),
		Category:     TitleCase(collapse(r.Category)),
		Unit:         unit,
		Description:  strings.TrimSpace(r.Description),
		Code:         code,
		MRP:          nonNegative(r.MRP),
		SellingPrice: nonNegative(r.SellingPrice),
		HSN:          normalizeHSN(r.HSN),
		Source:       r.Source,
		Confidence:   ClampConfidence(r.Confidence),
	}
	if r.GST != nil {
		gst := ClampGstRate(*r.GST)
		p.GST = &gst
	}
	return p
}

// ClampConfidence forces a confidence into [0,1]; 0..100 style scores are rescaled.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1 && c <= 100:
		return c / 100
	case c > 1:
		return 1
	default:
		return c
	}
}

func nonNegative(v *float64) *float64 {
	if v == nil || *v < 0 || math.IsNaN(*v) {
		return nil
	}
	out := *v
	return &out
}

func normalizeHSN(hsn string) string {
	digits := nonDigitRe.ReplaceAllString(hsn, "")
	if !hsnRe.MatchString(digits) {
		return ""
	}
	return digits
}
