// controller.go - Identification lifecycle: cache, selection, enrichment, inference, persistence

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bosocmputer/product_identify/internal/ai"
	"github.com/bosocmputer/product_identify/internal/canonical"
	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/bosocmputer/product_identify/internal/enrich"
	"github.com/bosocmputer/product_identify/internal/metrics"
	"github.com/bosocmputer/product_identify/internal/processor"
	"github.com/bosocmputer/product_identify/internal/storage"
	"github.com/bosocmputer/product_identify/pkg/models"
	"golang.org/x/sync/singleflight"
)

const (
	modeSingle = "single"
	modeMulti  = "multi"

	defaultRunTimeout    = 120 * time.Second
	defaultMaxImageBytes = 10 << 20
)

// Deps wires the controller. Only Orchestrator is required.
type Deps struct {
	Orchestrator *ai.Orchestrator
	Cache        storage.CacheStore
	Images       storage.ImageStore
	Selector     *processor.FrameSelector
	Enricher     *enrich.Enricher
	Fetcher      ImageFetcher

	MaxImageBytes int64
	// RunTimeout bounds a pipeline run once it is detached from the caller.
	RunTimeout time.Duration
}

// Result is a single-item identification.
type Result struct {
	Product      models.Product
	Cached       bool
	UsedProvider string // ai.UsedPrimary / ai.UsedSecondary, empty on cache hits
	ProviderName string
	Fingerprint  string
	ImagePath    string
	FrameIndex   int
}

// MultiResult is a multi-item identification. It is never cached.
type MultiResult struct {
	Products     []models.Product
	UsedProvider string
	ProviderName string
	Fingerprint  string
}

// Controller owns the request lifecycle.
type Controller struct {
	orchestrator  *ai.Orchestrator
	cache         storage.CacheStore
	images        storage.ImageStore
	selector      *processor.FrameSelector
	enricher      *enrich.Enricher
	fetcher       ImageFetcher
	maxImageBytes int64
	runTimeout    time.Duration

	flight singleflight.Group
}

// NewController validates deps and fills defaults.
func NewController(deps Deps) (*Controller, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	c := &Controller{
		orchestrator:  deps.Orchestrator,
		cache:         deps.Cache,
		images:        deps.Images,
		selector:      deps.Selector,
		enricher:      deps.Enricher,
		fetcher:       deps.Fetcher,
		maxImageBytes: deps.MaxImageBytes,
		runTimeout:    deps.RunTimeout,
	}
	if c.maxImageBytes <= 0 {
		c.maxImageBytes = defaultMaxImageBytes
	}
	if c.runTimeout <= 0 {
		c.runTimeout = defaultRunTimeout
	}
	if c.fetcher == nil {
		c.fetcher = NewHTTPFetcher(c.maxImageBytes)
	}
	return c, nil
}

// Identify returns the product pictured in the input. Concurrent identical
// requests share one run; a caller that gives up does not cancel the run, so
// its result still lands in the cache.
func (c *Controller) Identify(ctx context.Context, in Input, reqCtx *common.RequestContext) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues(modeSingle).Observe(time.Since(start).Seconds())
	}()

	reqCtx.StartStep("resolve_input")
	frames, err := c.resolveFrames(ctx, in)
	reqCtx.EndStep(stepStatus(err), err)
	if err != nil {
		metrics.Identifications.WithLabelValues(modeSingle, "invalid").Inc()
		return nil, err
	}

	fp := processor.BurstFingerprint(frames)
	reqCtx.LogInfo("🔑 Fingerprint %s (%d frame(s))", fp[:12], len(frames))

	if entry := c.lookup(ctx, fp, reqCtx); entry != nil {
		metrics.Identifications.WithLabelValues(modeSingle, "cached").Inc()
		return cachedResult(fp, entry), nil
	}

	leader := false
	ch := c.flight.DoChan(fp, func() (interface{}, error) {
		leader = true
		// a run that finished between our lookup and DoChan has already written the cache
		if entry := c.lookup(ctx, fp, reqCtx); entry != nil {
			return cachedResult(fp, entry), nil
		}
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.runTimeout)
		defer cancel()
		return c.run(runCtx, fp, frames, in.Barcode, reqCtx)
	})

	select {
	case <-ctx.Done():
		reqCtx.LogWarning("⏱️  Caller gave up, identification continues in background: %v", ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared && !leader {
			metrics.CoalescedRequests.Inc()
			reqCtx.LogInfo("🤝 Joined in-flight identification for %s", fp[:12])
		}
		if res.Err != nil {
			metrics.Identifications.WithLabelValues(modeSingle, failureLabel(res.Err)).Inc()
			return nil, res.Err
		}
		out := *res.Val.(*Result)
		label := "identified"
		if out.Cached {
			label = "cached"
		}
		metrics.Identifications.WithLabelValues(modeSingle, label).Inc()
		return &out, nil
	}
}

// run is the cache-miss path for one fingerprint.
func (c *Controller) run(ctx context.Context, fp string, frames [][]byte, barcodeHint string, reqCtx *common.RequestContext) (*Result, error) {
	sel := c.selectFrame(ctx, frames, reqCtx)
	frameFP := processor.Fingerprint(sel.Frame)

	keys := []string{fp}
	if frameFP != fp {
		keys = append(keys, frameFP)
		// the winning frame may already be known from an earlier single-photo request
		if entry := c.lookup(ctx, frameFP, reqCtx); entry != nil {
			c.store(ctx, []string{fp}, *entry, reqCtx)
			res := cachedResult(fp, entry)
			res.FrameIndex = sel.Index
			return res, nil
		}
	}

	prepared, mimeType := processor.PrepareForInference(sel.Frame)

	var enr enrich.Enrichment
	if c.enricher != nil {
		reqCtx.StartStep("enrichment")
		var known *string
		if sel.TextKnown {
			known = &sel.Text
		}
		enr = c.enricher.Enrich(ctx, sel.Frame, known, barcodeHint, reqCtx)
		reqCtx.EndStep("success", nil)
	} else {
		enr.Barcode = enrich.ExtractBarcode("", barcodeHint)
		enr.TextContext = enrich.BuildTextContext("", enr.Barcode, nil, nil)
	}

	reqCtx.StartStep("inference")
	outcome, err := c.orchestrator.Run(ctx, ai.Image{Data: prepared, MIME: mimeType}, enr.TextContext, reqCtx)
	reqCtx.EndStep(stepStatus(err), err)
	if err != nil {
		return nil, err
	}

	product := canonical.Canonicalize(*outcome.Result, enr.Barcode)
	if enr.Catalog != nil && !fillFromCatalog(&product, enr.Catalog) {
		reqCtx.LogWarning("⚠️  Catalog record %q (%s) does not match %q, ignored", enr.Catalog.Name, enr.Catalog.Code, product.ProductName)
	}
	reqCtx.LogInfo("✅ Identified %q via %s (confidence %.2f)", product.ProductName, outcome.ProviderName, product.Confidence)

	entry := models.CacheEntry{Best: product}
	c.store(ctx, keys, entry, reqCtx)

	imagePath := c.persistImage(ctx, frameFP, sel.Frame, reqCtx)
	if imagePath != "" {
		entry.ImagePath = imagePath
		c.store(ctx, keys, entry, reqCtx)
	}

	return &Result{
		Product:      product,
		UsedProvider: outcome.UsedProvider,
		ProviderName: outcome.ProviderName,
		Fingerprint:  fp,
		ImagePath:    imagePath,
		FrameIndex:   sel.Index,
	}, nil
}

// IdentifyMulti lists every product visible in the image. Results are not cached.
func (c *Controller) IdentifyMulti(ctx context.Context, in Input, reqCtx *common.RequestContext) (*MultiResult, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues(modeMulti).Observe(time.Since(start).Seconds())
	}()

	reqCtx.StartStep("resolve_input")
	frames, err := c.resolveFrames(ctx, in)
	reqCtx.EndStep(stepStatus(err), err)
	if err != nil {
		metrics.Identifications.WithLabelValues(modeMulti, "invalid").Inc()
		return nil, err
	}

	sel := c.selectFrame(ctx, frames, reqCtx)
	prepared, mimeType := processor.PrepareForInference(sel.Frame)

	// a single barcode or catalog record would mislead a multi-item prompt; OCR text only
	text := sel.Text
	if !sel.TextKnown && c.enricher != nil {
		text = c.enricher.ExtractText(ctx, sel.Frame, reqCtx)
	}
	textContext := enrich.BuildTextContext(text, "", nil, nil)

	reqCtx.StartStep("inference_multi")
	outcome, err := c.orchestrator.RunMulti(ctx, ai.Image{Data: prepared, MIME: mimeType}, textContext, reqCtx)
	reqCtx.EndStep(stepStatus(err), err)
	if err != nil {
		metrics.Identifications.WithLabelValues(modeMulti, failureLabel(err)).Inc()
		return nil, err
	}

	products := make([]models.Product, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		products = append(products, canonical.Canonicalize(r, ""))
	}
	metrics.Identifications.WithLabelValues(modeMulti, "identified").Inc()
	reqCtx.LogInfo("✅ Identified %d products via %s", len(products), outcome.ProviderName)

	return &MultiResult{
		Products:     products,
		UsedProvider: outcome.UsedProvider,
		ProviderName: outcome.ProviderName,
		Fingerprint:  processor.BurstFingerprint(frames),
	}, nil
}

func (c *Controller) selectFrame(ctx context.Context, frames [][]byte, reqCtx *common.RequestContext) processor.Selection {
	if len(frames) == 1 || c.selector == nil {
		return processor.Selection{Frame: frames[0], Index: 0}
	}
	reqCtx.StartStep("frame_selection")
	sel := c.selector.Select(ctx, frames)
	reqCtx.EndStep("success", nil)
	reqCtx.LogInfo("🎞️  Selected frame %d of %d (scores %v)", sel.Index, len(frames), sel.Scores)
	return sel
}

// lookup treats any cache failure as a miss.
func (c *Controller) lookup(ctx context.Context, fp string, reqCtx *common.RequestContext) *models.CacheEntry {
	if c.cache == nil {
		return nil
	}
	entry, err := c.cache.Get(ctx, fp)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		reqCtx.LogInfo("⚡ Cache hit for %s", fp[:12])
		return entry
	case errors.Is(err, storage.ErrCacheMiss):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		reqCtx.LogWarning("⚠️  Cache read failed, continuing without cache: %v", err)
	}
	return nil
}

func (c *Controller) store(ctx context.Context, keys []string, entry models.CacheEntry, reqCtx *common.RequestContext) {
	if c.cache == nil {
		return
	}
	for _, key := range keys {
		if err := c.cache.Put(ctx, key, entry); err != nil {
			metrics.CacheWrites.WithLabelValues("error").Inc()
			reqCtx.LogWarning("⚠️  Cache write for %s failed: %v", key[:12], err)
			continue
		}
		metrics.CacheWrites.WithLabelValues("ok").Inc()
	}
}

// persistImage uploads a compressed copy keyed by the frame fingerprint.
// Failures are logged and yield "".
func (c *Controller) persistImage(ctx context.Context, frameFP string, frame []byte, reqCtx *common.RequestContext) string {
	if c.images == nil {
		return ""
	}
	compressed, err := processor.CompressForStorage(frame)
	if err != nil {
		metrics.ImageUploads.WithLabelValues("error").Inc()
		reqCtx.LogWarning("⚠️  Image compression failed: %v", err)
		return ""
	}
	path, err := c.images.PutImage(ctx, frameFP, compressed)
	if err != nil {
		metrics.ImageUploads.WithLabelValues("error").Inc()
		reqCtx.LogWarning("⚠️  Image upload failed: %v", err)
		return ""
	}
	metrics.ImageUploads.WithLabelValues("ok").Inc()
	return path
}

// fillFromCatalog only fills fields the provider left empty, and only when the
// record plausibly describes the same product. An OCR barcode can belong to a
// neighbouring item on the shelf.
func fillFromCatalog(p *models.Product, rec *enrich.CatalogRecord) bool {
	if rec == nil || !catalogAgrees(*p, rec) {
		return false
	}
	if p.Brand == "" && rec.Brand != "" {
		p.Brand = canonical.TitleCase(rec.Brand)
	}
	if p.Category == "" && rec.Category != "" {
		p.Category = canonical.TitleCase(rec.Category)
	}
	if p.Unit == "" {
		p.Unit = canonical.ParseCanonicalUnit(rec.Quantity)
	}
	if p.Code == "" {
		p.Code = rec.Code
	}
	return true
}

func catalogAgrees(p models.Product, rec *enrich.CatalogRecord) bool {
	if p.Brand != "" && rec.Brand != "" {
		return canonical.NameSimilarity(p.Brand, rec.Brand) >= canonical.MatchThreshold
	}
	if rec.Name == "" {
		return true
	}
	return canonical.NameSimilarity(p.ProductName, rec.Name) >= canonical.MatchThreshold
}

func cachedResult(fp string, entry *models.CacheEntry) *Result {
	return &Result{
		Product:     entry.Best,
		Cached:      true,
		Fingerprint: fp,
		ImagePath:   entry.ImagePath,
	}
}

func failureLabel(err error) string {
	var allFailed *ai.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		return "failed"
	}
	return "error"
}

func stepStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
