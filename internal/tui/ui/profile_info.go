package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData holds profile information for display.
type ProfileData struct {
	Profile       string
	UserID        string
	Status        string
	Conversations int
	Unread        int
	LastSynced    time.Time
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}
	_, _ = fmt.Fprint(pi, pi.format(data, time.Now()))
}

func (pi *ProfileInfo) format(data *ProfileData, now time.Time) string {
	fgColor := colorName(pi.theme.FgColor)
	counterColor := colorName(pi.theme.CounterColor)
	statusColor := counterColor
	switch data.Status {
	case "UNAVAILABLE", "AUTH_REQUIRED":
		statusColor = colorName(pi.theme.FlashErrColor)
	case "STALE":
		statusColor = colorName(pi.theme.FlashWarnColor)
	}

	return fmt.Sprintf(
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Chats:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Unread:[-:-:-]  [%s]%d[-]\n"+
			"[%s::b]Synced:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, data.Profile,
		fgColor, counterColor, orDash(data.UserID),
		fgColor, statusColor, data.Status,
		fgColor, counterColor, data.Conversations,
		fgColor, counterColor, data.Unread,
		fgColor, counterColor, formatAge(data.LastSynced, now),
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm ago", int(d.Hours()), int(d.Minutes())%60)
	}
	return t.Local().Format("01/02 15:04")
}
