// names.go - Title cleanup and brand-aware product name canonicalization

package canonical

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxTitleLength is the point past which a title is cut at its first size phrase
const maxTitleLength = 90

var (
	// " - Buy Online at Best Price", " : Shop now", ...
	buyPhraseRe = regexp.MustCompile(`(?i)\s+[-–—:]\s*(?:buy|shop|best\s+price|order|online)\b.*$`)

	// "... at Amazon.in", "- Flipkart.com", "on BigBasket"
	marketplaceRe = regexp.MustCompile(`(?i)\s*(?:[-–—:,]\s*)?(?:\b(?:at|on|from|via)\s+)?\b(?:amazon(?:\.in|\.com)?|flipkart(?:\.com)?|bigbasket(?:\.com)?|jiomart(?:\.com)?|blinkit|zepto|dmart|instamart|snapdeal|myntra|nykaa)\b.*$`)

	// First complete size phrase: "200 ml", "1.5L", "500 gm", "10 pcs"
	sizePhraseRe = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:ml|l|ltr|litres?|liters?|kgs?|g|gms?|grams?|mg|pcs|pc|pieces|tablets|capsules|sachets)\b`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

const trimSet = " \t-–—:,|/"

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
// Words carrying digits ("200ml", "5G") are left untouched.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			continue
		}
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// CleanTitle strips marketplace and SEO noise from a listing title.
func CleanTitle(title string) string {
	s := title
	if idx := strings.Index(s, "|"); idx >= 0 {
		s = s[:idx]
	}
	s = buyPhraseRe.ReplaceAllString(s, "")
	if cut := marketplaceRe.ReplaceAllString(s, ""); strings.Trim(cut, trimSet) != "" {
		s = cut
	}
	s = collapse(s)
	if len(s) > maxTitleLength {
		s = truncateAtSize(s)
	}
	return s
}

// CanonicalizeName builds "<Brand> <rest of title>" without repeating the brand.
func CanonicalizeName(brand, title string) string {
	name := CleanTitle(title)
	brand = collapse(brand)
	if brand == "" {
		return name
	}

	if hasBrandPrefix(name, brand) {
		name = strings.TrimLeft(name[len(brand):], trimSet)
	}

	out := TitleCase(brand)
	if name != "" {
		out += " " + name
	}
	if len(out) > maxTitleLength {
		out = truncateAtSize(out)
	}
	return out
}

// hasBrandPrefix matches the brand as a whole leading word: "Dove Soap" but not "Dover Sole".
func hasBrandPrefix(name, brand string) bool {
	if len(name) < len(brand) || !strings.EqualFold(name[:len(brand)], brand) {
		return false
	}
	rest := name[len(brand):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func truncateAtSize(s string) string {
	loc := sizePhraseRe.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return strings.Trim(s[:loc[1]], trimSet)
}

func collapse(s string) string {
	return strings.Trim(whitespaceRe.ReplaceAllString(s, " "), trimSet)
}
