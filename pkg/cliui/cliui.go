// Package cliui provides terminal UI helpers (styles, step indicators,
// markdown rendering of memory entries) for mnemo CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Preview flattens s onto one line and truncates it to width cells.
func Preview(s string, width int) string {
	flat := strings.Join(strings.Fields(s), " ")
	return ansi.Truncate(flat, width, "…")
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// EntriesMarkdown renders entries as a markdown document, one section per
// entry.
func EntriesMarkdown(entries []*memory.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "### %s\n\n", e.ID)
		fmt.Fprintf(&b, "`%s:%s` · %s · %s · v%d", e.Scope, e.Namespace, e.Layer, e.Priority, e.Version)
		if e.Conflict {
			fmt.Fprintf(&b, " · **conflict of %s**", e.ConflictOf)
		}
		b.WriteString("\n\n")
		b.WriteString(e.Content)
		b.WriteString("\n\n")
		if len(e.Tags) > 0 {
			fmt.Fprintf(&b, "_tags: %s_\n\n", strings.Join(e.Tags, ", "))
		}
	}
	return b.String()
}

// PrintEntries writes entries to w. On a terminal they are rendered as
// markdown; otherwise each entry is a plain "id<TAB>scope:namespace<TAB>content"
// line suitable for piping.
func PrintEntries(w io.Writer, entries []*memory.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintf(w, "  %s\n", DimStyle.Render("No entries."))
		return err
	}

	if !IsTerminal() {
		for _, e := range entries {
			content := strings.ReplaceAll(e.Content, "\n", " ")
			if _, err := fmt.Fprintf(w, "%s\t%s:%s\t%s\n", e.ID, e.Scope, e.Namespace, content); err != nil {
				return err
			}
		}
		return nil
	}

	rendered, err := RenderMarkdown(EntriesMarkdown(entries))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}
