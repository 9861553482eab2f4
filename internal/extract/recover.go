package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNoJSON means the text held no '[' ... ']' region at all.
	ErrNoJSON = errors.New("no JSON array found in model output")

	// ErrMalformedJSON means a bracketed region was found but did not parse.
	ErrMalformedJSON = errors.New("model output contains malformed JSON")
)

// codeFence matches ``` markers with an optional language tag.
var codeFence = regexp.MustCompile("```[A-Za-z0-9_+-]*")

// RecoverJSON pulls a JSON array out of free-form model text.
//
// Code fences are stripped, then the span from the first '[' to the last ']'
// must parse as JSON. An object wrapping the array, such as {"tasks": [...]},
// therefore yields the inner array. Nothing is ever repaired or synthesized.
func RecoverJSON(raw string) (json.RawMessage, error) {
	text := codeFence.ReplaceAllString(raw, "")

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < 0 || end < start {
		return nil, ErrNoJSON
	}

	span := strings.TrimSpace(text[start : end+1])
	var v any
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return json.RawMessage(span), nil
}
