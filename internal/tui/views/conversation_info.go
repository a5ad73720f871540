package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays details about a conversation and its participant.
type ConversationInfo struct {
	*tview.TextView
	lifecycle
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(c chat.Conversation) {
	ci.Clear()

	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)

	online := "no"
	if c.Other.Online {
		online = "yes"
	}
	last := "-"
	if p := c.LastMessage; p != nil {
		last = fmt.Sprintf("%s (%s)", display(p.Content), p.CreatedAt.Local().Format(time.DateTime))
	}
	created := "-"
	if !c.CreatedAt.IsZero() {
		created = c.CreatedAt.Local().Format(time.DateTime)
	}

	rows := []struct{ label, value string }{
		{"Name:", display(participantName(c))},
		{"User ID:", display(c.Other.ID)},
		{"Online:", online},
		{"Avatar:", display(c.Other.AvatarURL)},
		{"Conversation:", display(c.ID)},
		{"Started:", created},
		{"Unread:", fmt.Sprintf("%d", c.UnreadCount)},
		{"Last Message:", last},
	}
	for _, r := range rows {
		if r.value == "" {
			r.value = "-"
		}
		_, _ = fmt.Fprintf(ci, " [%s::b]%-14s[-:-:-] [%s]%s[-]\n", fg, r.label, ct, r.value)
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", display(participantName(c))))
}
