package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/LJTian/TheNews/internal/news"
	"github.com/charmbracelet/lipgloss"
)

var (
	iris  = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#9D9BF2"}
	slate = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
)

// Terminal prints each story as a styled block. Colour is only emitted when
// w is a terminal that supports it.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer

	headline lipgloss.Style
	link     lipgloss.Style
	byline   lipgloss.Style
}

// NewTerminal wraps text at width columns; width <= 0 disables wrapping.
func NewTerminal(w io.Writer, width int) *Terminal {
	r := lipgloss.NewRenderer(w)

	t := &Terminal{
		w: w,
		headline: r.NewStyle().
			Bold(true).
			Foreground(iris),
		link: r.NewStyle().
			Foreground(slate).
			Underline(true),
		byline: r.NewStyle().
			Foreground(slate).
			Italic(true),
	}
	if width > 0 {
		t.headline = t.headline.Width(width)
		t.byline = t.byline.Width(width)
	}
	return t
}

func (t *Terminal) Render(_ context.Context, story news.Story) error {
	block := []string{t.headline.Render(story.Title)}
	if b := story.Byline(); b != "" {
		block = append(block, t.byline.Render(b))
	}
	block = append(block, t.link.Render(story.URL))

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.w, lipgloss.JoinVertical(lipgloss.Left, block...)+"\n")
	return err
}
