package util

import (
	"html"
	"strings"
)

const maxUsernameLength = 128

// SanitizeUsername normalizes a username before it is used as part of a
// throttling key or written to a log line. Escaping keeps injected markup
// out of structured logs.
func SanitizeUsername(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxUsernameLength {
		s = s[:maxUsernameLength]
	}
	return html.EscapeString(strings.ToLower(s))
}
