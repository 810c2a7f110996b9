// barcode.go - Barcode digit extraction from OCR text or a client hint

package enrich

import (
	"regexp"
	"strings"
)

// EAN-8, or UPC-A / EAN-13 / GTIN-14
var barcodeRe = regexp.MustCompile(`\b(\d{12,14}|\d{8})\b`)

// ExtractBarcode prefers a well-formed client hint. Otherwise it returns the
// LAST 8 or 12-14 digit run in the OCR text, since trailing codes on labels are
// more often the primary barcode. Returns "" when nothing matches.
func ExtractBarcode(text, hint string) string {
	if code := digitsOnly(hint); isBarcodeLength(len(code)) {
		return code
	}

	matches := barcodeRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

func isBarcodeLength(n int) bool {
	return n == 8 || (n >= 12 && n <= 14)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
