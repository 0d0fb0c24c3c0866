// Package analysis talks to the text-generation model that reads CARV screenshots and writes
// training plans. The model is an external collaborator: this package builds requests, relays
// the reply and classifies upstream failures.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/quidome/carvtrainer-go/pkg/config"
)

// ErrMissingAPIKey is returned when the selected provider has no key configured.
// Its text names api_key so Classify reports it as KindAuth.
var ErrMissingAPIKey = errors.New("api_key is not configured")

// Image is one uploaded screenshot sent to the model.
type Image struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Request is a single-turn model call: optional images followed by a text prompt.
type Request struct {
	System    string
	Prompt    string
	Images    []Image
	MaxTokens int
}

// Model generates a text reply for a request.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// NewModel builds the client for the configured provider.
func NewModel(cfg config.ModelConfig) (Model, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Model:   cfg.Name,
			Timeout: cfg.Timeout,
		}), nil
	case config.ProviderGemini:
		return NewGeminiClient(context.Background(), GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.Name,
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

var mediaTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// MediaType maps a filename extension to the MIME type sent with the image.
// Unknown extensions are sent as image/png.
func MediaType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if mt, ok := mediaTypes[ext]; ok {
		return mt
	}
	return "image/png"
}
