// Package fingerprint derives a stable identity for error records so that
// recurring errors group together regardless of embedded volatile numbers.
package fingerprint

import (
	"regexp"
	"strings"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

const placeholder = "#"

// Generate returns normalizedMessage + "|" + stackLine, where every digit run in
// the message becomes a single placeholder and stackLine is the first frame
// below the error header, trimmed. A missing stack yields an empty stack line.
func Generate(message, stack string) string {
	normalized := digitRun.ReplaceAllString(message, placeholder)
	return normalized + "|" + stackLine(stack)
}

func stackLine(stack string) string {
	lines := strings.Split(stack, "\n")
	if len(lines) < 2 {
		return ""
	}
	return strings.TrimSpace(lines[1])
}

// FromData extracts error.message and error.stack from a log data map. ok is
// false when data has no error object, in which case the record should not be
// fingerprinted.
func FromData(data map[string]any) (message, stack string, ok bool) {
	errData, ok := data["error"].(map[string]any)
	if !ok {
		return "", "", false
	}
	message, _ = errData["message"].(string)
	stack, _ = errData["stack"].(string)
	return message, stack, true
}
