// Package tui renders engine replies for the interactive terminal runner.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/urbangroup/botflow/pkg/engine"
)

// Renderer formats replies for a terminal.
type Renderer struct {
	markdown func(string) (string, error)
	profile  termenv.Profile
}

// NewRenderer creates a color renderer with markdown support.
func NewRenderer() *Renderer {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	return &Renderer{
		markdown: r.Render,
		profile:  termenv.ColorProfile(),
	}
}

// NewPlainRenderer creates a renderer for non-TTY output.
func NewPlainRenderer() *Renderer {
	return &Renderer{profile: termenv.Ascii}
}

// Reply renders a bot reply: text (markdown in a TTY) plus its buttons.
func (r *Renderer) Reply(reply *engine.Reply) string {
	var b strings.Builder

	text := reply.Text
	if r.markdown != nil {
		if rendered, err := r.markdown(text); err == nil {
			text = rendered
		}
	}
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n")

	for i, btn := range reply.Buttons {
		num := termenv.String(fmt.Sprintf("  [%d]", i+1)).Foreground(r.profile.Color("#38bdf8")).String()
		title := termenv.String(btn.Title).Foreground(r.profile.Color("#e2e8f0")).Bold().String()
		b.WriteString(fmt.Sprintf("%s %s\n", num, title))
	}
	return b.String()
}

// System renders an out-of-band runner message, dimmed.
func (r *Renderer) System(msg string) string {
	return termenv.String("~ " + msg).Foreground(r.profile.Color("#64748b")).String()
}
