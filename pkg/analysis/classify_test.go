package analysis

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOther},
		{"missing key", ErrMissingAPIKey, KindAuth},
		{"wrapped missing key", fmt.Errorf("analyze: %w", ErrMissingAPIKey), KindAuth},
		{"authentication text", errors.New("Error code: 401 - Authentication failed"), KindAuth},
		{"gemini bad key text", errors.New("API key not valid. Please pass a valid API key."), KindAuth},
		{"rate limit text", errors.New("rate_limit_error: too many requests"), KindRateLimit},
		{"gemini quota text", errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), KindRateLimit},
		{"forbidden status", &UpstreamError{Provider: "anthropic", StatusCode: http.StatusForbidden}, KindAuth},
		{"429 status", &UpstreamError{Provider: "anthropic", StatusCode: http.StatusTooManyRequests}, KindRateLimit},
		{"server error", &UpstreamError{Provider: "anthropic", StatusCode: http.StatusInternalServerError, Message: "boom"}, KindOther},
		{"timeout", errors.New("context deadline exceeded"), KindOther},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "rate_limit", KindRateLimit.String())
	assert.Equal(t, "other", KindOther.String())
}

func TestUpstreamError_Error(t *testing.T) {
	err := &UpstreamError{Provider: "anthropic", StatusCode: 401, Type: "authentication_error", Message: "invalid x-api-key"}
	assert.Equal(t, "anthropic: status 401: authentication_error: invalid x-api-key", err.Error())

	err = &UpstreamError{Provider: "anthropic", StatusCode: 502, Message: "bad gateway"}
	assert.Equal(t, "anthropic: status 502: bad gateway", err.Error())
}

func TestMediaType(t *testing.T) {
	testCases := map[string]string{
		"a.png":        "image/png",
		"b.JPG":        "image/jpeg",
		"c.jpeg":       "image/jpeg",
		"d.webp":       "image/webp",
		"e.gif":        "image/gif",
		"f.heic":       "image/png",
		"no-extension": "image/png",
	}
	for filename, want := range testCases {
		assert.Equal(t, want, MediaType(filename), filename)
	}
}
