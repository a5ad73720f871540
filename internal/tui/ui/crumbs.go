package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Crumbs shows the navigation path, followed by an optional availability badge
// such as "offline".
type Crumbs struct {
	*tview.TextView
	theme *Theme
	path  []string
	badge string
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update sets the trail, root first.
func (c *Crumbs) Update(path []string) {
	c.path = append(c.path[:0], path...)
	c.render()
}

// SetBadge sets the badge text; empty hides it.
func (c *Crumbs) SetBadge(text string) {
	c.badge = text
	c.render()
}

func (c *Crumbs) render() {
	c.Clear()

	parts := make([]string, 0, len(c.path))
	for i, name := range c.path {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(c.path)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", colorName(fg), colorName(bg), attr, tview.Escape(name)))
	}
	line := strings.Join(parts, " > ")
	if c.badge != "" {
		line += fmt.Sprintf("  [%s::b]%s[-:-:-]", colorName(c.theme.FailedColor), tview.Escape(c.badge))
	}
	_, _ = fmt.Fprint(c, line)
}

// colorName returns a tview-compatible color name string.
func colorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
