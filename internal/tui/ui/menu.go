package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// menuRows is the number of hints per column; it matches the header height.
const menuRows = 6

// MenuHint is one shortcut shown in the header. Numeric hints select by digit
// and take their own color.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool
}

// Menu displays keyboard shortcut hints in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints column by column. A key listed twice is shown once, the
// first occurrence wins.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	hints = dedupe(hints)

	cols := (len(hints) + menuRows - 1) / menuRows
	width := make([]int, cols)
	for i, h := range hints {
		if w := utf8.RuneCountInString(h.Key) + utf8.RuneCountInString(h.Description) + 3; w > width[i/menuRows] {
			width[i/menuRows] = w
		}
	}

	var b strings.Builder
	for row := 0; row < menuRows && row < len(hints); row++ {
		for col := 0; col < cols; col++ {
			i := col*menuRows + row
			if i >= len(hints) {
				break
			}
			h := hints[i]
			b.WriteString(m.cell(h))
			if col < cols-1 && (col+1)*menuRows+row < len(hints) {
				pad := width[col] - utf8.RuneCountInString(h.Key) - utf8.RuneCountInString(h.Description) - 3
				b.WriteString(strings.Repeat(" ", pad+2))
			}
		}
		b.WriteByte('\n')
	}
	_, _ = fmt.Fprint(m, b.String())
}

func (m *Menu) cell(h MenuHint) string {
	kc := colorName(m.theme.MenuKeyColor)
	if h.Numeric {
		kc = colorName(m.theme.NumericKeyColor)
	}
	return fmt.Sprintf("[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), tview.Escape(h.Description))
}

func dedupe(hints []MenuHint) []MenuHint {
	seen := make(map[string]bool, len(hints))
	out := hints[:0:0]
	for _, h := range hints {
		if seen[h.Key] {
			continue
		}
		seen[h.Key] = true
		out = append(out, h)
	}
	return out
}
