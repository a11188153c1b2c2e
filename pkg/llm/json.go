package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> blocks some reasoning models emit
// before their answer.
var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

var (
	leadingFencePattern  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	trailingFencePattern = regexp.MustCompile("\r?\n?[ \t]*```[ \t]*$")
)

// stripWrappers removes think blocks and a surrounding markdown code fence.
// Fences in the middle of the text are left alone; the slicing step skips
// past them anyway.
func stripWrappers(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = leadingFencePattern.ReplaceAllString(cleaned, "")
	cleaned = trailingFencePattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// ExtractJSON returns the largest balanced, already-valid JSON object or array
// in a model response. It handles think blocks, fences and surrounding prose
// but never rewrites the payload. Use Recover when the payload itself may be
// malformed.
func ExtractJSON(response string) (string, error) {
	cleaned := stripWrappers(response)

	best := ""
	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] != '{' && cleaned[i] != '[' {
			continue
		}
		candidate, ok := extractBalancedJSON(cleaned, i)
		if !ok {
			continue
		}
		if json.Valid([]byte(candidate)) {
			if len(candidate) > len(best) {
				best = candidate
			}
			// Nested values are never larger than their container.
			i += len(candidate) - 1
		}
	}
	if best != "" {
		return best, nil
	}

	if cleaned != "" && json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// extractBalancedJSON returns the balanced structure opening at s[start],
// counting depth outside double-quoted strings.
func extractBalancedJSON(s string, start int) (string, bool) {
	openChar := s[start]
	closeChar := byte('}')
	if openChar == '[' {
		closeChar = ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
