package session

import (
	"regexp"
	"strings"
)

// Redacted replaces secret-looking tokens in recorded lines.
const Redacted = "[REDACTED]"

// secretPattern matches runs of 24 or more characters that look like keys or
// tokens.
var secretPattern = regexp.MustCompile(`[A-Za-z0-9_-]{24,}`)

// Redact replaces every secret-looking token in line.
func Redact(line string) string {
	return secretPattern.ReplaceAllString(line, Redacted)
}

// Clean drops blank lines and redacts the rest.
func Clean(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, Redact(l))
	}
	return out
}
