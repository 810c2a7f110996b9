package canonical

import "testing"

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b      string
		wantMatch bool
	}{
		{"Hindustan Unilever Ltd.", "hindustan unilever", true},
		{"Procter & Gamble", "Procter and Gamble", true},
		{"Nestle", "Nestlé", true},
		{"Maggi", "Maggi 2-Minute Noodles Masala", true},
		{"Amul", "Parle", false},
		{"Britannia Good Day", "Sunfeast Dark Fantasy", false},
		{"", "Amul", false},
		{"Pvt Ltd", "Amul", false},
	}
	for _, tt := range tests {
		got := NameSimilarity(tt.a, tt.b)
		if got < 0 || got > 1 {
			t.Errorf("NameSimilarity(%q, %q) = %v, out of range", tt.a, tt.b, got)
		}
		if (got >= MatchThreshold) != tt.wantMatch {
			t.Errorf("NameSimilarity(%q, %q) = %.2f, want match=%v", tt.a, tt.b, got, tt.wantMatch)
		}
	}
}

func TestNormalizeForMatch(t *testing.T) {
	if got := NormalizeForMatch("  Parle Products Pvt. Ltd.  "); got != "parle" {
		t.Errorf("NormalizeForMatch() = %q", got)
	}
}
