package canonical

import (
	"regexp"
	"strings"
)

// MatchThreshold is the NameSimilarity at or above which two names are taken
// to describe the same product or brand.
const MatchThreshold = 0.6

var (
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

	// company suffixes that never distinguish one brand from another
	companyWords = map[string]bool{
		"pvt": true, "private": true, "ltd": true, "limited": true, "co": true,
		"company": true, "corp": true, "corporation": true, "inc": true,
		"india": true, "industries": true, "foods": true, "products": true,
	}
)

// NormalizeForMatch lowercases, drops punctuation and company words, and
// rewrites "&" to "and" so "Hindustan Unilever Ltd." matches "hindustan unilever".
func NormalizeForMatch(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "&", " and "))
	var kept []string
	for _, w := range strings.Fields(nonWordRe.ReplaceAllString(s, " ")) {
		if !companyWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// NameSimilarity is 1 - levenshtein/maxLen over normalized names, in [0,1].
// One name containing the other whole scores at least MatchThreshold.
func NameSimilarity(a, b string) float64 {
	a, b = NormalizeForMatch(a), NormalizeForMatch(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	score := 1 - float64(levenshtein(ra, rb))/float64(maxLen)

	if score < MatchThreshold && (containsWords(a, b) || containsWords(b, a)) {
		score = MatchThreshold
	}
	if score < 0 {
		return 0
	}
	return score
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// levenshtein uses two rolling rows over runes.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
