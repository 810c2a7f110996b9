// errors.go - Typed provider failures

package ai

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable       = errors.New("provider unavailable")
	ErrProviderTimeout           = errors.New("provider timeout")
	ErrProviderMalformedResponse = errors.New("provider malformed response")
)

// ProviderError is the only error type an adapter returns.
type ProviderError struct {
	Provider string
	Kind     error // one of the ErrProvider* sentinels
	Category string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("%s: %v [%s]: %v", e.Provider, e.Kind, e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProviderTimeout) match on the kind.
func (e *ProviderError) Is(target error) bool { return e.Kind == target }

func newProviderError(provider string, kind error, category string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Category: category, Err: err}
}

func malformed(provider string, format string, args ...interface{}) *ProviderError {
	return newProviderError(provider, ErrProviderMalformedResponse, "parse", fmt.Errorf(format, args...))
}

// AllProvidersFailedError aggregates the primary and secondary failures.
type AllProvidersFailedError struct {
	Primary   error
	Secondary error // nil when no secondary is configured
}

func (e *AllProvidersFailedError) Error() string {
	if e.Secondary == nil {
		return fmt.Sprintf("all providers failed: primary: %v; secondary: not configured", e.Primary)
	}
	return fmt.Sprintf("all providers failed: primary: %v; secondary: %v", e.Primary, e.Secondary)
}

func (e *AllProvidersFailedError) Unwrap() []error {
	if e.Secondary == nil {
		return []error{e.Primary}
	}
	return []error{e.Primary, e.Secondary}
}
