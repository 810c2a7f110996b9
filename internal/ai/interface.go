// interface.go - Provider interface shared by the primary and secondary adapters

package ai

import (
	"context"

	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/bosocmputer/product_identify/pkg/models"
)

// Image is the canonical buffer handed to a provider, already sized for inference.
type Image struct {
	Data []byte
	MIME string
}

// Provider identifies retail products from a photo.
// Implementations make exactly one upstream call per method invocation and
// report failure through a *ProviderError; fallback belongs to the Orchestrator.
type Provider interface {
	// Identify returns the single most prominent product in the image.
	Identify(ctx context.Context, img Image, textContext string, reqCtx *common.RequestContext) (*models.ProviderResult, error)

	// IdentifyMulti returns every distinct product visible in the image.
	IdentifyMulti(ctx context.Context, img Image, textContext string, reqCtx *common.RequestContext) ([]models.ProviderResult, error)

	// Name returns the provider name (e.g., "gemini", "mistral")
	Name() string
}
