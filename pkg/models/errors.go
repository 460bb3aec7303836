package models

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// errorFields is the ordered set of fields checked when extracting a
// human-readable description from an error reply. The server isn't
// consistent: route handlers answer {"error": ...}, request validation
// answers {"detail": ...} and the streamed messages use "message".
var errorFields = []string{"error", "detail", "message"}

// maxRawErrorLen caps how much of a non-JSON error body is surfaced.
const maxRawErrorLen = 200

// ExtractErrorMessage pulls a human-readable message out of an error reply
// body, trying the recognized fields in order and falling back to the raw
// body text. fallback is returned when the body yields nothing, typically
// the HTTP status line.
func ExtractErrorMessage(body []byte, fallback string) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, field := range errorFields {
			raw, ok := payload[field]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
				continue
			}
			// Validation errors arrive as structured detail, surface
			// them as-is rather than guessing at their shape
			if trimmed := strings.TrimSpace(string(raw)); trimmed != "" && trimmed != "null" {
				return trimmed
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return Excerpt(text, maxRawErrorLen)
	}
	return fallback
}

// Excerpt bounds s to at most n runes, marking the cut with an ellipsis.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
