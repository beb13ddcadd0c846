package reasoning

import (
	"errors"
	"strings"
)

// ErrNoJSON is returned when a reply contains no JSON object or array.
var ErrNoJSON = errors.New("no valid JSON found in response")

// ExtractJSON returns the outermost JSON object or array embedded in a
// reply, tolerating prose and code fences around it.
func ExtractJSON(content string) (string, error) {
	open, closer := "{", "}"
	objStart := strings.Index(content, "{")
	arrStart := strings.Index(content, "[")
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		open, closer = "[", "]"
	}

	start := strings.Index(content, open)
	end := strings.LastIndex(content, closer)
	if start == -1 || end <= start {
		return "", ErrNoJSON
	}
	return content[start : end+1], nil
}

// Truncate shortens s for log and error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
