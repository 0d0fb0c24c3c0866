package analysis

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the caller-visible category of a failed model call.
type Kind int

const (
	KindOther Kind = iota
	KindAuth
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "other"
	}
}

// UpstreamError is a non-2xx reply from the model provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: status %d: %s: %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

var (
	authMarkers      = []string{"api_key", "authentication", "api key"}
	rateLimitMarkers = []string{"rate_limit", "resource_exhausted"}
)

// Classify sorts a model error into auth, rate-limit or other.
//
// Status codes are used when the error carries one; otherwise the lowercased
// error text is searched for provider markers.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusTooManyRequests:
			return KindRateLimit
		}
	}

	msg := strings.ToLower(err.Error())
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return KindAuth
		}
	}
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return KindRateLimit
		}
	}
	return KindOther
}
