package rag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRateLimited marks provider failures caused by throttling or an
// exhausted quota. Callers match it with errors.Is.
var ErrRateLimited = errors.New("provider rate limited")

// ProviderError wraps a failure from the embedding or inference
// provider, so callers can tell it apart from an answer that simply is
// not in the document.
type ProviderError struct {
	Op          string
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRateLimited) see through the wrapper.
func (e *ProviderError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited
}

func wrapProvider(op string, err error) *ProviderError {
	return &ProviderError{Op: op, RateLimited: rateLimited(err), Err: err}
}

var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"too many requests",
	"insufficient_quota",
	"quota",
}

// rateLimited sniffs the error text because neither langchaingo client
// exposes a typed status code.
func rateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
