package utils

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const maxRenderWidth = 100

// TermWidth returns the current terminal width, falling back to 80 when
// stdout isn't a terminal.
func TermWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// RenderMarkdown renders content for terminal display. raw skips rendering
// entirely, and any renderer failure falls back to the unrendered text so
// output is never lost to cosmetics.
func RenderMarkdown(content string, raw bool) string {
	if raw {
		return content
	}
	width := TermWidth()
	if width > maxRenderWidth {
		width = maxRenderWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}
