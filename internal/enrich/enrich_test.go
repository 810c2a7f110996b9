package enrich

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bosocmputer/product_identify/internal/common"
	"google.golang.org/api/option"
)

func TestExtractBarcode(t *testing.T) {
	tests := []struct {
		name, text, hint, want string
	}{
		{"hint wins", "code 8901234567890", "0123-4567", "01234567"},
		{"malformed hint ignored", "EAN 8901571000219", "12345", "8901571000219"},
		{"ean8", "lot 12345678 end", "", "12345678"},
		{"ten digits are not a barcode", "call 9876543210", "", ""},
		{"no digits", "SENSODYNE", "", ""},
		// Observed behaviour kept on purpose: the LAST match wins, not the first.
		{"last match wins", "MFD 20240101 batch 8901571000219 and 4006381333931", "", "4006381333931"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBarcode(tt.text, tt.hint); got != tt.want {
				t.Errorf("ExtractBarcode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCatalogClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/product/8901571000219.json":
			w.Write([]byte(`{"status":1,"product":{"product_name":"Rapid Relief","brands":"Sensodyne, GSK","quantity":"70 g","categories":"Toothpastes, Oral care"}}`))
		case "/api/v2/product/00000000.json":
			w.Write([]byte(`{"status":0}`))
		case "/api/v2/product/11111111.json":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewCatalogClient(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewCatalogClient() error = %v", err)
	}
	ctx := context.Background()

	rec, err := c.Lookup(ctx, "8901571000219")
	if err != nil || rec == nil {
		t.Fatalf("Lookup() = %v, %v", rec, err)
	}
	if rec.Brand != "Sensodyne" || rec.Category != "Toothpastes" || rec.Quantity != "70 g" {
		t.Errorf("unexpected record %+v", rec)
	}

	if rec, err := c.Lookup(ctx, "00000000"); rec != nil || err != nil {
		t.Errorf("unknown code should be (nil, nil), got %v, %v", rec, err)
	}
	if rec, err := c.Lookup(ctx, "22222222"); rec != nil || err != nil {
		t.Errorf("404 should be (nil, nil), got %v, %v", rec, err)
	}
	if _, err := c.Lookup(ctx, "11111111"); err == nil {
		t.Error("500 should be an error")
	}
}

func TestBiasQueryAndAllowedHost(t *testing.T) {
	q := BiasQuery(" dove soap ", []string{"amazon.in", "flipkart.com"})
	if q != "dove soap (site:amazon.in OR site:flipkart.com)" {
		t.Errorf("BiasQuery() = %q", q)
	}

	domains := []string{"amazon.in"}
	tests := []struct {
		link string
		want bool
	}{
		{"https://www.amazon.in/dp/123", true},
		{"https://amazon.in/x", true},
		{"https://notamazon.in/x", false},
		{"https://amazon.in.evil.com/x", false},
		{"::bad", false},
	}
	for _, tt := range tests {
		if got := AllowedHost(tt.link, domains); got != tt.want {
			t.Errorf("AllowedHost(%q) = %v, want %v", tt.link, got, tt.want)
		}
	}
}

func TestSearchClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("cx") != "engine" {
			t.Errorf("cx = %q", q.Get("cx"))
		}
		if !strings.Contains(q.Get("q"), "site:amazon.in") {
			t.Errorf("query not biased: %q", q.Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"title":"Off-list","link":"https://example.com/a"},
			{"title":"Dove Soap 100g","link":"https://www.amazon.in/dove","snippet":"s1"},
			{"title":"Dove Soap Pack","link":"https://www.flipkart.com/dove","snippet":"s2"},
			{"title":"Third","link":"https://www.amazon.in/third"}
		]}`))
	}))
	defer srv.Close()

	c, err := NewSearchClient(context.Background(), "key", "engine",
		[]string{"amazon.in", "flipkart.com"}, option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewSearchClient() error = %v", err)
	}

	hints, err := c.Search(context.Background(), "dove soap")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hints) != MaxWebHints {
		t.Fatalf("got %d hints, want %d", len(hints), MaxWebHints)
	}
	if hints[0].Title != "Dove Soap 100g" || hints[1].Title != "Dove Soap Pack" {
		t.Errorf("unexpected hints %+v", hints)
	}
}

func TestNewSearchClient_Validation(t *testing.T) {
	if _, err := NewSearchClient(context.Background(), "", "cx", []string{"a.com"}); err == nil {
		t.Error("expected error without key")
	}
	if _, err := NewSearchClient(context.Background(), "k", "cx", nil); err == nil {
		t.Error("expected error without domains")
	}
}

type stubOCR struct {
	text  string
	err   error
	calls atomic.Int32
}

func (s *stubOCR) DetectText(context.Context, []byte) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

type stubCatalog struct {
	records map[string]*CatalogRecord
	err     error
	calls   atomic.Int32
}

func (s *stubCatalog) Lookup(_ context.Context, code string) (*CatalogRecord, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.records[code], nil
}

type stubSearch struct {
	hints []WebHint
	err   error
	query string
}

func (s *stubSearch) Search(_ context.Context, query string) ([]WebHint, error) {
	s.query = query
	return s.hints, s.err
}

func TestEnricher_Enrich(t *testing.T) {
	ocr := &stubOCR{text: "SENSODYNE Rapid Relief\n70g 8901571000219"}
	catalog := &stubCatalog{records: map[string]*CatalogRecord{
		"8901571000219": {Name: "Rapid Relief", Brand: "Sensodyne"},
	}}
	search := &stubSearch{hints: []WebHint{{Title: "a"}, {Title: "b"}, {Title: "c"}}}

	e := NewEnricher(ocr, catalog, search)
	out := e.Enrich(context.Background(), []byte("img"), nil, "", common.NewRequestContext("t"))

	if out.Barcode != "8901571000219" {
		t.Errorf("Barcode = %q", out.Barcode)
	}
	if out.Catalog == nil || out.Catalog.Brand != "Sensodyne" {
		t.Errorf("Catalog = %+v", out.Catalog)
	}
	if len(out.Hints) != MaxWebHints {
		t.Errorf("Hints = %d, want %d", len(out.Hints), MaxWebHints)
	}
	for _, want := range []string{"OCR: SENSODYNE Rapid Relief 70g", "Barcode: 8901571000219", "Catalog: Rapid Relief", "Web: a", "Web: b"} {
		if !strings.Contains(out.TextContext, want) {
			t.Errorf("TextContext missing %q:\n%s", want, out.TextContext)
		}
	}
	if strings.Contains(out.TextContext, "Web: c") {
		t.Error("third web hint must be dropped")
	}
}

func TestEnricher_ReusesKnownTextAndHint(t *testing.T) {
	ocr := &stubOCR{text: "should not be used"}
	catalog := &stubCatalog{records: map[string]*CatalogRecord{
		"12345678": {Name: "Hinted", Brand: "Brand"},
	}}
	search := &stubSearch{}
	known := "label text 99999999"

	out := NewEnricher(ocr, catalog, search).Enrich(context.Background(), nil, &known, "12345678", common.NewRequestContext("t"))
	if ocr.calls.Load() != 0 {
		t.Error("OCR should be skipped when text is already known")
	}
	if out.Barcode != "12345678" || out.Catalog == nil || out.Catalog.Name != "Hinted" {
		t.Errorf("hint should drive barcode and catalog: %+v", out)
	}
	if catalog.calls.Load() != 1 {
		t.Errorf("catalog calls = %d, want 1", catalog.calls.Load())
	}
	if search.query != "Brand Hinted" {
		t.Errorf("search query = %q", search.query)
	}
}

func TestEnricher_FailuresAreSwallowed(t *testing.T) {
	e := NewEnricher(
		&stubOCR{err: errors.New("ocr down")},
		&stubCatalog{err: errors.New("catalog down")},
		&stubSearch{err: errors.New("search down")},
	)
	out := e.Enrich(context.Background(), []byte("img"), nil, "8901571000219", common.NewRequestContext("t"))
	if out.Text != "" || out.Catalog != nil || out.Hints != nil {
		t.Errorf("failures should produce empty enrichment: %+v", out)
	}
	if out.TextContext != "Barcode: 8901571000219" {
		t.Errorf("TextContext = %q", out.TextContext)
	}
}

func TestEnricher_NothingConfigured(t *testing.T) {
	out := NewEnricher(nil, nil, nil).Enrich(context.Background(), []byte("img"), nil, "", common.NewRequestContext("t"))
	if out.TextContext != "" || out.Barcode != "" {
		t.Errorf("expected empty enrichment, got %+v", out)
	}
}

func TestBuildTextContext_Capped(t *testing.T) {
	long := strings.Repeat("word ", 1000)
	hints := []WebHint{{Title: strings.Repeat("t", 800)}, {Title: strings.Repeat("u", 800)}}
	got := BuildTextContext(long, "12345678", &CatalogRecord{Name: "n"}, hints)
	if len(got) > MaxTextContext {
		t.Errorf("context length %d exceeds cap %d", len(got), MaxTextContext)
	}
	if !strings.HasPrefix(got, "OCR: word") {
		t.Errorf("unexpected prefix %q", got[:20])
	}
}

type widthOCR struct{ width int }

func (w *widthOCR) DetectText(_ context.Context, data []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	w.width = cfg.Width
	return "MAGGI", nil
}

func TestExtractText_SendsDetectionCopy(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3000, 20))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	ocr := &widthOCR{}

	text := NewEnricher(ocr, nil, nil).ExtractText(context.Background(), buf.Bytes(), common.NewRequestContext("t"))
	if text != "MAGGI" {
		t.Fatalf("text = %q", text)
	}
	if ocr.width != 1280 {
		t.Errorf("OCR received width %d, want 1280", ocr.width)
	}
}
