// enricher.go - Runs the optional extraction steps and assembles the provider text context

package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/bosocmputer/product_identify/internal/processor"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxTextContext caps the grounding string handed to providers
	MaxTextContext = 1500

	maxOCRInContext = 900
	stepTimeout     = 10 * time.Second
)

// Enrichment is everything the extractors found for one image.
type Enrichment struct {
	Text        string
	Barcode     string
	Catalog     *CatalogRecord
	Hints       []WebHint
	TextContext string
}

// Enricher wires the optional collaborators. Any of them may be nil.
type Enricher struct {
	ocr     processor.TextDetector
	catalog CatalogLookup
	search  WebSearcher
}

// NewEnricher checks collaborator availability once, here.
func NewEnricher(ocr processor.TextDetector, catalog CatalogLookup, search WebSearcher) *Enricher {
	return &Enricher{ocr: ocr, catalog: catalog, search: search}
}

// ExtractText is best-effort OCR: failures are logged and yield "".
func (e *Enricher) ExtractText(ctx context.Context, image []byte, reqCtx *common.RequestContext) string {
	if e.ocr == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	text, err := e.ocr.DetectText(ctx, processor.PrepareForDetection(image))
	if err != nil {
		reqCtx.LogWarning("⚠️  OCR failed, continuing without text: %v", err)
		return ""
	}
	return text
}

// LookupCatalog swallows every failure and reports it as "no data".
func (e *Enricher) LookupCatalog(ctx context.Context, code string, reqCtx *common.RequestContext) *CatalogRecord {
	if e.catalog == nil || code == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	rec, err := e.catalog.Lookup(ctx, code)
	if err != nil {
		reqCtx.LogWarning("⚠️  Catalog lookup for %s failed: %v", code, err)
		return nil
	}
	return rec
}

// WebHints returns at most MaxWebHints results, or nothing when search is unconfigured.
func (e *Enricher) WebHints(ctx context.Context, query string, reqCtx *common.RequestContext) []WebHint {
	if e.search == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	hints, err := e.search.Search(ctx, query)
	if err != nil {
		reqCtx.LogWarning("⚠️  Web hint search failed: %v", err)
		return nil
	}
	if len(hints) > MaxWebHints {
		hints = hints[:MaxWebHints]
	}
	return hints
}

// Enrich runs OCR, barcode extraction, catalog lookup and web hints. Independent
// calls run concurrently; nothing here can fail the request.
// knownText is the OCR text already produced by frame selection, if any.
func (e *Enricher) Enrich(ctx context.Context, image []byte, knownText *string, barcodeHint string, reqCtx *common.RequestContext) Enrichment {
	var out Enrichment
	hintCode := ExtractBarcode("", barcodeHint)

	// Stage 1: OCR and hint-driven catalog lookup have no dependency on each other
	var hintRecord *CatalogRecord
	g, gctx := errgroup.WithContext(ctx)
	if knownText != nil {
		out.Text = *knownText
	} else {
		g.Go(func() error {
			out.Text = e.ExtractText(gctx, image, reqCtx)
			return nil
		})
	}
	if hintCode != "" {
		g.Go(func() error {
			hintRecord = e.LookupCatalog(gctx, hintCode, reqCtx)
			return nil
		})
	}
	_ = g.Wait()

	out.Barcode = ExtractBarcode(out.Text, barcodeHint)
	out.Catalog = hintRecord

	// Stage 2: OCR-derived catalog lookup and web hints
	g, gctx = errgroup.WithContext(ctx)
	if out.Barcode != "" && out.Barcode != hintCode {
		g.Go(func() error {
			if rec := e.LookupCatalog(gctx, out.Barcode, reqCtx); rec != nil {
				out.Catalog = rec
			}
			return nil
		})
	}
	g.Go(func() error {
		out.Hints = e.WebHints(gctx, hintQuery(hintRecord, out.Text, out.Barcode), reqCtx)
		return nil
	})
	_ = g.Wait()

	out.TextContext = BuildTextContext(out.Text, out.Barcode, out.Catalog, out.Hints)
	reqCtx.LogInfo("🔎 Enrichment: ocr=%d chars, barcode=%q, catalog=%v, hints=%d",
		len(out.Text), out.Barcode, out.Catalog != nil, len(out.Hints))
	return out
}

// hintQuery prefers the catalog name, then the first OCR words, then the barcode.
func hintQuery(rec *CatalogRecord, text, barcode string) string {
	if rec != nil && rec.Name != "" {
		return strings.TrimSpace(rec.Brand + " " + rec.Name)
	}
	if words := strings.Fields(text); len(words) > 0 {
		if len(words) > 8 {
			words = words[:8]
		}
		return strings.Join(words, " ")
	}
	return barcode
}

// BuildTextContext assembles the compact grounding string; it is never stored.
func BuildTextContext(text, barcode string, rec *CatalogRecord, hints []WebHint) string {
	var parts []string

	if t := strings.Join(strings.Fields(text), " "); t != "" {
		t = truncate(t, maxOCRInContext)
		parts = append(parts, "OCR: "+t)
	}
	if barcode != "" {
		parts = append(parts, "Barcode: "+barcode)
	}
	if rec != nil {
		parts = append(parts, fmt.Sprintf("Catalog: %s | brand: %s | qty: %s | category: %s",
			rec.Name, rec.Brand, rec.Quantity, rec.Category))
	}
	for i, h := range hints {
		if i == MaxWebHints {
			break
		}
		parts = append(parts, "Web: "+h.Title)
	}

	return truncate(strings.Join(parts, "\n"), MaxTextContext)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
