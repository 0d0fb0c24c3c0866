// Package jsontext extracts the JSON object a text-generation model embedded in its reply.
//
// Normalize is a best-effort slice, not a parser: it never fails and does not check brace
// balance. Decode layers encoding/json on top and reports ErrUnparseable.
package jsontext

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

// ErrUnparseable is returned by Decode when the normalized text is not valid JSON.
var ErrUnparseable = errors.New("jsontext: response is not valid JSON")

// Normalize strips markdown fences and surrounding prose from a model reply.
//
// The result starts at the first '{' and ends at the last '}' when both exist in
// that order; otherwise the trimmed, fence-stripped text is returned unchanged.
func Normalize(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, fence) {
		// Drop the fence line, including a language tag such as "json".
		if i := strings.IndexByte(text, '\n'); i != -1 {
			text = text[i+1:]
		}
		text = strings.TrimSuffix(text, fence)
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start != -1 && end != -1 && start < end {
		text = text[start : end+1]
	}

	return text
}

// Decode normalizes text and unmarshals it into v.
func Decode(text string, v any) error {
	if err := json.Unmarshal([]byte(Normalize(text)), v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return nil
}
