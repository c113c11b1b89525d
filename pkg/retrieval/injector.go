package retrieval

import (
	"unicode/utf8"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

const (
	DefaultMaxChars         = 1200
	DefaultPerEntryMaxChars = 400

	ellipsis = "…"
)

// InjectorConfig bounds the injected text. Lengths are counted in runes.
type InjectorConfig struct {
	// MaxChars caps the combined length of all lines.
	MaxChars int

	// PerEntryMaxChars caps the content portion of a single line.
	PerEntryMaxChars int
}

// Injector formats entries into prompt lines of the form
// "[scope:namespace|id] content". It holds no state between calls.
type Injector struct {
	maxChars         int
	perEntryMaxChars int
}

// NewInjector builds an Injector, applying defaults for zero limits.
func NewInjector(c InjectorConfig) *Injector {
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.PerEntryMaxChars <= 0 {
		c.PerEntryMaxChars = DefaultPerEntryMaxChars
	}

	return &Injector{maxChars: c.MaxChars, perEntryMaxChars: c.PerEntryMaxChars}
}

// Format renders entries in order until the budget is spent. The entry that
// crosses the budget is cut to fit when its header still fits; nothing after
// it is emitted.
func (i *Injector) Format(entries []*memory.Entry) []string {
	lines := make([]string, 0, len(entries))
	used := 0

	for _, e := range entries {
		header := Header(e) + " "
		headerLen := utf8.RuneCountInString(header)

		content := Truncate(e.Content, i.perEntryMaxChars)
		contentLen := utf8.RuneCountInString(content)

		if used+headerLen+contentLen <= i.maxChars {
			lines = append(lines, header+content)
			used += headerLen + contentLen
			continue
		}

		room := i.maxChars - used - headerLen
		if room > 0 {
			lines = append(lines, header+Truncate(content, room))
		}
		break
	}

	return lines
}

// Header is the line prefix identifying e.
func Header(e *memory.Entry) string {
	return "[" + string(e.Scope) + ":" + e.Namespace + "|" + e.ID + "]"
}

// Truncate cuts s to at most n runes, ending in an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	if n == 1 {
		return string(runes[:1])
	}
	return string(runes[:n-1]) + ellipsis
}
