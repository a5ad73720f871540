package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Brand is the wordmark in the header corner. Its color and the line below it
// follow the sync state, so a lost connection shows even with the flash bar clear.
type Brand struct {
	*tview.TextView
	theme *Theme
}

func NewBrand(theme *Theme) *Brand {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignRight)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 0, 1)

	b := &Brand{TextView: tv, theme: theme}
	b.SetState("")
	return b
}

// SetState redraws the mark for a sync state name such as "READY" or "STALE".
func (b *Brand) SetState(state string) {
	b.SetText(b.markup(state))
}

func (b *Brand) markup(state string) string {
	color, line := b.theme.TitleColor, "connecting"
	switch state {
	case "READY":
		color, line = b.theme.CounterColor, "● live"
	case "LOADING":
		line = "◌ syncing"
	case "STALE":
		color, line = b.theme.FlashWarnColor, "◌ cached"
	case "UNAVAILABLE":
		color, line = b.theme.FlashErrColor, "○ offline"
	case "AUTH_REQUIRED":
		color, line = b.theme.FlashErrColor, "✕ signed out"
	}
	c := colorName(color)
	return fmt.Sprintf(
		"[%s::b]match[-:-:-][%s]chat[-:-:-]\n[%s]%s[-:-:-]",
		c, colorName(b.theme.FgColor), c, line,
	)
}
