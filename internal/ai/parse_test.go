package ai

import (
	"errors"
	"testing"

	"github.com/bosocmputer/product_identify/internal/common"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"name\":\"x\"}\n```", `{"name":"x"}`},
		{"```\n[1]\n```", "[1]"},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLenientDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantName string
	}{
		{"single quotes and trailing comma", `{'name': 'Dove Soap', 'brand': 'Dove',}`, "Dove Soap"},
		{"prose around value", "Sure! Here it is:\n{\"name\": \"Tata Salt\"}\nHope this helps.", "Tata Salt"},
		{"smart quotes", `{“name”: “Amul Butter”}`, "Amul Butter"},
		{"apostrophe inside double quotes", `{"name": "Haldiram's Bhujia", }`, "Haldiram's Bhujia"},
		{"escaped apostrophe inside single quotes", `{'name': 'Haldiram\'s'}`, "Haldiram's"},
		{"double quote inside single quotes", `{'name': 'Pipe 2" elbow'}`, `Pipe 2" elbow`},
		{"raw newline in string", "{\"name\": \"Line one\nLine two\"}", "Line one\nLine two"},
		{"fenced with trailing comma in list", "```json\n{\"products\": [{\"name\": \"A\"},]}\n```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v map[string]interface{}
			if err := LenientDecode(tt.raw, &v); err != nil {
				t.Fatalf("LenientDecode() error = %v", err)
			}
			if tt.wantName == "" {
				return
			}
			if got := v["name"]; got != tt.wantName {
				t.Errorf("name = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestLenientDecode_Garbage(t *testing.T) {
	var v interface{}
	if err := LenientDecode("I could not identify this product.", &v); err == nil {
		t.Error("expected error for non-JSON text")
	}
}

func TestResultFromMap_Aliases(t *testing.T) {
	r := resultFromMap(map[string]interface{}{
		"Product_Name":  "Rapid Relief",
		"brand_name":    "Sensodyne",
		"quantity":      "70 g",
		"selling_price": "₹1,299.50",
		"MRP":           float64(1350),
		"hsn_code":      float64(3306),
		"gst_rate":      "18%",
		"confidence":    float64(85),
	}, "mistral")

	if r.Name != "Rapid Relief" || r.Brand != "Sensodyne" || r.Unit != "70 g" {
		t.Errorf("unexpected text fields %+v", r)
	}
	if r.SellingPrice == nil || *r.SellingPrice != 1299.5 {
		t.Errorf("SellingPrice = %v", r.SellingPrice)
	}
	if r.MRP == nil || *r.MRP != 1350 {
		t.Errorf("MRP = %v", r.MRP)
	}
	if r.HSN != "3306" {
		t.Errorf("HSN = %q", r.HSN)
	}
	if r.GST == nil || *r.GST != 18 {
		t.Errorf("GST = %v", r.GST)
	}
	if r.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", r.Confidence)
	}
	if r.Source != "mistral" {
		t.Errorf("Source = %q", r.Source)
	}
}

func TestResultFromMap_DefaultConfidence(t *testing.T) {
	r := resultFromMap(map[string]interface{}{"name": "x"}, "gemini")
	if r.Confidence != defaultConfidence {
		t.Errorf("Confidence = %v, want %v", r.Confidence, defaultConfidence)
	}
	if r.GST != nil || r.MRP != nil {
		t.Error("missing numeric fields must stay nil")
	}
}

func TestListFromValue(t *testing.T) {
	v, err := parseStrict(`{"products": [{"name": "A"}, {"brand": "nameless"}, {"name": "B"}]}`)
	if err != nil {
		t.Fatal(err)
	}
	list := listFromValue(v, "gemini")
	if len(list) != 2 || list[0].Name != "A" || list[1].Name != "B" {
		t.Errorf("listFromValue() = %+v", list)
	}

	v, _ = parseStrict(`[{"name": "Only"}]`)
	if r, ok := singleFromValue(v, "gemini"); !ok || r.Name != "Only" {
		t.Errorf("singleFromValue(list) = %+v, %v", r, ok)
	}
}

func TestParseGeminiSingle(t *testing.T) {
	reqCtx := common.NewRequestContext("t")

	t.Run("fenced strict JSON", func(t *testing.T) {
		r, err := parseGeminiSingle("```json\n{\"name\": \"Rapid Relief\", \"brand\": \"Sensodyne\", \"confidence\": 0.92}\n```", reqCtx)
		if err != nil {
			t.Fatal(err)
		}
		if r.Name != "Rapid Relief" || r.Confidence != 0.92 {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("truncated JSON is salvaged", func(t *testing.T) {
		raw := `{"name": "Rapid Relief", "brand": "Sensodyne", "category": "Toothpaste", "unit": "70 g", "confidence": 0.95, "description": "Sensitivity \"fast\" relief", "mrp": `
		r, err := parseGeminiSingle(raw, reqCtx)
		if err != nil {
			t.Fatal(err)
		}
		if r.Name != "Rapid Relief" || r.Brand != "Sensodyne" || r.Unit != "70 g" || r.Category != "Toothpaste" {
			t.Errorf("got %+v", r)
		}
		if r.Description != `Sensitivity "fast" relief` {
			t.Errorf("Description = %q", r.Description)
		}
		if r.Confidence != salvagedConfidenceCap {
			t.Errorf("Confidence = %v, want cap %v", r.Confidence, salvagedConfidenceCap)
		}
	})

	t.Run("salvaged low confidence is kept", func(t *testing.T) {
		r, err := parseGeminiSingle(`{"name": "X", "confidence": 0.2,`, reqCtx)
		if err != nil {
			t.Fatal(err)
		}
		if r.Confidence != 0.2 {
			t.Errorf("Confidence = %v, want 0.2", r.Confidence)
		}
	})

	t.Run("no name is malformed", func(t *testing.T) {
		for _, raw := range []string{`{"brand": "Dove"}`, `{"brand": "Dove",`, "sorry"} {
			_, err := parseGeminiSingle(raw, reqCtx)
			if !errors.Is(err, ErrProviderMalformedResponse) {
				t.Errorf("parseGeminiSingle(%q) error = %v, want malformed", raw, err)
			}
		}
	})
}

func TestParseProductList_Empty(t *testing.T) {
	_, err := parseProductList("mistral", `{"products": []}`)
	if !errors.Is(err, ErrProviderMalformedResponse) {
		t.Errorf("error = %v, want malformed", err)
	}
}
