// orchestrator.go - Sequential primary→secondary fallback

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/bosocmputer/product_identify/internal/metrics"
	"github.com/bosocmputer/product_identify/pkg/models"
)

const (
	UsedPrimary   = "primary"
	UsedSecondary = "secondary"
)

// Outcome is a successful single-item identification.
type Outcome struct {
	Result       *models.ProviderResult
	UsedProvider string // UsedPrimary or UsedSecondary
	ProviderName string
}

// MultiOutcome is a successful multi-item identification.
type MultiOutcome struct {
	Results      []models.ProviderResult
	UsedProvider string
	ProviderName string
}

// Orchestrator calls the primary provider and, only if it fails, the secondary.
// The two are never called concurrently.
type Orchestrator struct {
	primary   Provider
	secondary Provider
}

// NewOrchestrator requires a primary; secondary may be nil.
func NewOrchestrator(primary, secondary Provider) (*Orchestrator, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary provider is required")
	}
	return &Orchestrator{primary: primary, secondary: secondary}, nil
}

// HasSecondary reports whether a fallback provider is configured.
func (o *Orchestrator) HasSecondary() bool {
	return o.secondary != nil
}

// Run identifies one product. Both failing yields *AllProvidersFailedError.
func (o *Orchestrator) Run(ctx context.Context, img Image, textContext string, reqCtx *common.RequestContext) (*Outcome, error) {
	result, primaryErr := o.identify(ctx, o.primary, img, textContext, reqCtx)
	if primaryErr == nil {
		return &Outcome{Result: result, UsedProvider: UsedPrimary, ProviderName: o.primary.Name()}, nil
	}
	reqCtx.LogWarning("⚠️  Primary provider %s failed: %v", o.primary.Name(), primaryErr)

	if o.secondary == nil {
		return nil, &AllProvidersFailedError{Primary: primaryErr}
	}

	reqCtx.LogInfo("🔄 Falling back to %s", o.secondary.Name())
	result, secondaryErr := o.identify(ctx, o.secondary, img, textContext, reqCtx)
	if secondaryErr != nil {
		reqCtx.LogError("❌ Secondary provider %s failed: %v", o.secondary.Name(), secondaryErr)
		return nil, &AllProvidersFailedError{Primary: primaryErr, Secondary: secondaryErr}
	}
	return &Outcome{Result: result, UsedProvider: UsedSecondary, ProviderName: o.secondary.Name()}, nil
}

// RunMulti mirrors Run for multi-item identification; an empty list counts as failure.
func (o *Orchestrator) RunMulti(ctx context.Context, img Image, textContext string, reqCtx *common.RequestContext) (*MultiOutcome, error) {
	results, primaryErr := o.identifyMulti(ctx, o.primary, img, textContext, reqCtx)
	if primaryErr == nil {
		return &MultiOutcome{Results: results, UsedProvider: UsedPrimary, ProviderName: o.primary.Name()}, nil
	}
	reqCtx.LogWarning("⚠️  Primary provider %s failed (multi): %v", o.primary.Name(), primaryErr)

	if o.secondary == nil {
		return nil, &AllProvidersFailedError{Primary: primaryErr}
	}

	results, secondaryErr := o.identifyMulti(ctx, o.secondary, img, textContext, reqCtx)
	if secondaryErr != nil {
		reqCtx.LogError("❌ Secondary provider %s failed (multi): %v", o.secondary.Name(), secondaryErr)
		return nil, &AllProvidersFailedError{Primary: primaryErr, Secondary: secondaryErr}
	}
	return &MultiOutcome{Results: results, UsedProvider: UsedSecondary, ProviderName: o.secondary.Name()}, nil
}

func (o *Orchestrator) identify(ctx context.Context, p Provider, img Image, textContext string, reqCtx *common.RequestContext) (*models.ProviderResult, error) {
	start := time.Now()
	result, err := p.Identify(ctx, img, textContext, reqCtx)
	if err == nil && (result == nil || strings.TrimSpace(result.Name) == "") {
		err = malformed(p.Name(), "result has no name")
	}
	observe(p.Name(), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) identifyMulti(ctx context.Context, p Provider, img Image, textContext string, reqCtx *common.RequestContext) ([]models.ProviderResult, error) {
	start := time.Now()
	results, err := p.IdentifyMulti(ctx, img, textContext, reqCtx)
	if err == nil {
		named := results[:0:0]
		for _, r := range results {
			if strings.TrimSpace(r.Name) != "" {
				named = append(named, r)
			}
		}
		results = named
		if len(results) == 0 {
			err = malformed(p.Name(), "no products identified")
		}
	}
	observe(p.Name(), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return results, nil
}

func observe(provider string, err error, d time.Duration) {
	metrics.ProviderCalls.WithLabelValues(provider, OutcomeLabel(err)).Inc()
	metrics.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// OutcomeLabel names a provider call result for metrics and logs.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, ErrProviderMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
