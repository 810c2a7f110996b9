// gemini_errors.go - Categorizes Gemini API failures into provider error kinds

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// categorizeGeminiError maps an upstream error onto one of the provider
// sentinels. The category string is kept for logs and metrics.
func categorizeGeminiError(err error) *ProviderError {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400:
			return newProviderError(providerGemini, ErrProviderMalformedResponse, "bad_request", err)
		case 401:
			return newProviderError(providerGemini, ErrProviderUnavailable, "unauthorized", err)
		case 403:
			return newProviderError(providerGemini, ErrProviderUnavailable, "forbidden", err)
		case 404:
			return newProviderError(providerGemini, ErrProviderUnavailable, "not_found", err)
		case 413:
			return newProviderError(providerGemini, ErrProviderUnavailable, "payload_too_large", err)
		case 429:
			return newProviderError(providerGemini, ErrProviderUnavailable, "rate_limit", err)
		case 500, 502, 503:
			return newProviderError(providerGemini, ErrProviderUnavailable, "server_error", err)
		case 504:
			return newProviderError(providerGemini, ErrProviderTimeout, "gateway_timeout", err)
		default:
			return newProviderError(providerGemini, ErrProviderUnavailable,
				fmt.Sprintf("api_error_%d", apiErr.Code), err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(providerGemini, ErrProviderTimeout, "timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return newProviderError(providerGemini, ErrProviderUnavailable, "canceled", err)
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline"):
		return newProviderError(providerGemini, ErrProviderTimeout, "timeout", err)
	case strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "resource_exhausted"):
		return newProviderError(providerGemini, ErrProviderUnavailable, "quota_exceeded", err)
	case strings.Contains(errMsg, "blocked") || strings.Contains(errMsg, "safety"):
		return newProviderError(providerGemini, ErrProviderMalformedResponse, "blocked", err)
	case strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network"):
		return newProviderError(providerGemini, ErrProviderUnavailable, "network_error", err)
	}
	return newProviderError(providerGemini, ErrProviderUnavailable, "unknown", err)
}
