// handlers.go - HTTP handlers for product identification and response shaping.

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bosocmputer/product_identify/internal/ai"
	"github.com/bosocmputer/product_identify/internal/auth"
	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/bosocmputer/product_identify/internal/metrics"
	"github.com/bosocmputer/product_identify/internal/pipeline"
	"github.com/bosocmputer/product_identify/pkg/models"
	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "product-identify"
	serviceVersion = "1.0.0"

	genericFailure = "Something went wrong while identifying the product. Please try again."

	// statusClientClosedRequest is the nginx convention for a caller that hung up
	statusClientClosedRequest = 499
)

// IdentifyRequest is the body of both identify endpoints. Exactly one image
// source is used: framesBase64, then imageBase64, then imageUrl.
type IdentifyRequest struct {
	ImageBase64  string   `json:"imageBase64"`
	ImageURL     string   `json:"imageUrl"`
	FramesBase64 []string `json:"framesBase64"`
	Barcode      string   `json:"barcode"`
}

func (r IdentifyRequest) input() pipeline.Input {
	return pipeline.Input{
		ImageBase64:  r.ImageBase64,
		ImageURL:     r.ImageURL,
		FramesBase64: r.FramesBase64,
		Barcode:      r.Barcode,
	}
}

// Identifier is the pipeline as seen by the handlers.
type Identifier interface {
	Identify(ctx context.Context, in pipeline.Input, reqCtx *common.RequestContext) (*pipeline.Result, error)
	IdentifyMulti(ctx context.Context, in pipeline.Input, reqCtx *common.RequestContext) (*pipeline.MultiResult, error)
}

// Handler serves the identification API.
type Handler struct {
	identifier Identifier
	timeout    time.Duration
}

// NewHandler wraps the pipeline; timeout bounds each request (default 120s).
func NewHandler(identifier Identifier, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Handler{identifier: identifier, timeout: timeout}
}

// Register mounts every route on r. Auth only guards the identify endpoints.
func (h *Handler) Register(r gin.IRouter, authMiddleware gin.HandlerFunc) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	if authMiddleware != nil {
		v1.Use(authMiddleware)
	}
	v1.POST("/identify-product", h.IdentifyProduct)
	v1.POST("/identify-products", h.IdentifyProducts)
}

// Health is a liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// IdentifyProduct handles POST /api/v1/identify-product.
func (h *Handler) IdentifyProduct(c *gin.Context) {
	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("Invalid request format: expected JSON with imageBase64, imageUrl or framesBase64", ""))
		return
	}

	reqCtx := common.NewRequestContext(auth.UserID(c))
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.identifier.Identify(ctx, req.input(), reqCtx)
	summary := reqCtx.GetSummary()
	if err != nil {
		h.respondError(c, err, reqCtx)
		return
	}

	body := gin.H{
		"ok":          true,
		"success":     true,
		"cached":      res.Cached,
		"best":        res.Product,
		"product":     res.Product,
		"autofill":    res.Product.Autofill(),
		"fingerprint": res.Fingerprint,
		"request_id":  reqCtx.RequestID,
		"metadata": gin.H{
			"processed_at": time.Now().Format(time.RFC3339),
			"duration_ms":  summary["total_duration_ms"],
			"token_usage":  summary["token_usage"],
			"frame_index":  res.FrameIndex,
		},
	}
	if res.UsedProvider != "" {
		body["provider"] = res.UsedProvider
		body["provider_name"] = res.ProviderName
	}
	if res.ImagePath != "" {
		body["imagePath"] = res.ImagePath
	}
	c.JSON(http.StatusOK, body)
}

// IdentifyProducts handles POST /api/v1/identify-products.
func (h *Handler) IdentifyProducts(c *gin.Context) {
	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure("Invalid request format: expected JSON with imageBase64, imageUrl or framesBase64", ""))
		return
	}

	reqCtx := common.NewRequestContext(auth.UserID(c))
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.identifier.IdentifyMulti(ctx, req.input(), reqCtx)
	reqCtx.GetSummary()
	if err != nil {
		h.respondError(c, err, reqCtx)
		return
	}

	autofill := make([]models.Autofill, 0, len(res.Products))
	for _, p := range res.Products {
		autofill = append(autofill, p.Autofill())
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"success":       true,
		"products":      res.Products,
		"items":         res.Products,
		"autofill":      autofill,
		"total":         len(res.Products),
		"count":         len(res.Products),
		"provider":      res.UsedProvider,
		"provider_name": res.ProviderName,
		"fingerprint":   res.Fingerprint,
		"request_id":    reqCtx.RequestID,
	})
}

// respondError maps pipeline errors onto status codes. Unexpected errors are
// logged in full and answered with a generic message.
func (h *Handler) respondError(c *gin.Context, err error, reqCtx *common.RequestContext) {
	var (
		inputErr  *pipeline.InputError
		allFailed *ai.AllProvidersFailedError
	)

	switch {
	case errors.As(err, &inputErr):
		reqCtx.LogWarning("⚠️  Rejected input: %v", err)
		c.JSON(http.StatusBadRequest, failure(inputErr.Reason, reqCtx.RequestID))

	case errors.As(err, &allFailed):
		// The request itself was valid; the client decides whether to retry
		body := failure(allFailed.Error(), reqCtx.RequestID)
		body["errors"] = gin.H{
			"primary":   errorText(allFailed.Primary),
			"secondary": errorText(allFailed.Secondary),
		}
		c.JSON(http.StatusOK, body)

	case errors.Is(err, context.DeadlineExceeded):
		reqCtx.LogError("⏱️  Request timeout after %s", h.timeout)
		c.JSON(http.StatusRequestTimeout, failure("Processing timeout. Please try again with a clearer photo.", reqCtx.RequestID))

	case errors.Is(err, context.Canceled):
		reqCtx.LogWarning("🔌 Client closed the request: %v", err)
		c.JSON(statusClientClosedRequest, failure("Request cancelled", reqCtx.RequestID))

	default:
		reqCtx.LogError("❌ Identification failed: %v", err)
		c.JSON(http.StatusInternalServerError, failure(genericFailure, reqCtx.RequestID))
	}
}

func failure(message, requestID string) gin.H {
	body := gin.H{
		"ok":      false,
		"success": false,
		"message": message,
	}
	if requestID != "" {
		body["request_id"] = requestID
	}
	return body
}

func errorText(err error) string {
	if err == nil {
		return "not configured"
	}
	return err.Error()
}
