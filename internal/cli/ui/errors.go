package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// FormatError renders msg and optional fix suggestions for stderr, styled
// only when stderr is a color terminal.
func FormatError(msg string, suggestions ...string) string {
	return RenderError(Renderer(os.Stderr, ColorEnabled()), msg, suggestions...)
}

// RenderError renders msg and suggestions with r. Each suggestion is a
// command line the user can copy.
func RenderError(r *lipgloss.Renderer, msg string, suggestions ...string) string {
	var b strings.Builder
	b.WriteString(r.NewStyle().Bold(true).Foreground(ColorRed).Render("Error:"))
	b.WriteString(" " + msg + "\n")
	if len(suggestions) == 0 {
		return b.String()
	}

	hint := r.NewStyle().Faint(true)
	b.WriteString("\n" + hint.Render("  Try:") + "\n")
	for _, s := range suggestions {
		b.WriteString("    " + hint.Render(SymbolArrow) + " " + s + "\n")
	}
	return b.String()
}
