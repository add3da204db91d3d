package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/kevensen/conductor-chat/internal/logging"
)

// DefaultWidth is used when the caller has no window size yet
const DefaultWidth = 80

// Style names accepted by NewRenderer
const (
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

// Renderer turns reasoning text into styled terminal output
type Renderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// NewRenderer builds a renderer that wraps at width using the dark style
func NewRenderer(width int) *Renderer {
	return NewStyledRenderer(StyleDark, width)
}

// NewStyledRenderer builds a renderer with one of the glamour standard styles
func NewStyledRenderer(style string, width int) *Renderer {
	r := &Renderer{style: style}
	r.SetWidth(width)
	return r
}

// Width is the current wrap width
func (r *Renderer) Width() int {
	return r.width
}

// SetWidth rebuilds the underlying renderer for a new wrap width
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if width == r.width && r.renderer != nil {
		return
	}
	r.width = width

	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logging.WithComponent("markdown").Warn("Failed to build markdown renderer", "style", r.style, "error", err)
		r.renderer = nil
		return
	}
	r.renderer = tr
}

// Render styles text. When rendering fails the raw text is returned.
func (r *Renderer) Render(text string) string {
	if r == nil || r.renderer == nil {
		return text
	}
	out, err := r.renderer.Render(text)
	if err != nil {
		logging.WithComponent("markdown").Debug("Markdown render failed, using raw text", "error", err)
		return text
	}
	return strings.Trim(out, "\n")
}
