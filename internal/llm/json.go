package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedJSON is returned when model output is not a single JSON object.
var ErrMalformedJSON = errors.New("model output is not valid JSON")

const snippetLen = 200

// DecodeObject parses a JSON object from an LLM response, handling markdown
// code fences.
func DecodeObject(text string) (map[string]any, error) {
	var result map[string]any
	if err := DecodeInto(text, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: null", ErrMalformedJSON)
	}
	return result, nil
}

// DecodeInto unmarshals an LLM response into v.
func DecodeInto(text string, v any) error {
	text = stripFences(text)
	if text == "" {
		return fmt.Errorf("%w: empty response", ErrMalformedJSON)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v (snippet: %s)", ErrMalformedJSON, err, snippet(text))
	}
	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}
