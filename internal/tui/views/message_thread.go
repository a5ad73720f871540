package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the messages of one conversation and a composer.
type MessageThread struct {
	*tview.Flex
	lifecycle
	theme          *ui.Theme
	messages       *tview.TextView
	composer       *tview.InputField
	selfID         string
	conversationID string
	title          string
	lastFailed     string
	onSubmit       func(text string)
	now            func() time.Time
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme, selfID string) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus, /attach <path>, /retry) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		selfID:   selfID,
		now:      time.Now,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSubmit == nil {
			return
		}
		if text := composer.GetText(); strings.TrimSpace(text) != "" {
			mt.onSubmit(text)
			composer.SetText("")
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Messages"
}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "R", Description: "Retry failed"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
	}
}

// Open switches the view to a conversation.
func (mt *MessageThread) Open(conversationID, title string) {
	mt.conversationID = conversationID
	mt.title = title
	mt.lastFailed = ""
	mt.messages.SetTitle(fmt.Sprintf(" %s ", display(title)))
	mt.messages.Clear()
}

// ConversationID returns the open conversation.
func (mt *MessageThread) ConversationID() string {
	return mt.conversationID
}

// LastFailed returns the temp id of the newest failed message, if any.
func (mt *MessageThread) LastFailed() string {
	return mt.lastFailed
}

// SetOnSubmit sets the callback run with each composer line.
func (mt *MessageThread) SetOnSubmit(fn func(text string)) {
	mt.onSubmit = fn
}

// Update renders msgs, oldest first.
func (mt *MessageThread) Update(msgs []chat.Message) {
	atEnd := mt.atEnd()
	mt.messages.Clear()
	mt.lastFailed = ""

	now := mt.now()
	var b strings.Builder
	for _, m := range msgs {
		mt.renderMessage(&b, m, now)
		if m.State == chat.Failed {
			mt.lastFailed = m.ID
		}
	}
	_, _ = fmt.Fprint(mt.messages, b.String())

	if atEnd {
		mt.messages.ScrollToEnd()
	}
}

func (mt *MessageThread) renderMessage(b *strings.Builder, m chat.Message, now time.Time) {
	sender, senderColor := "Them", mt.theme.OtherColor
	if m.SenderID == mt.selfID {
		sender, senderColor = "You", mt.theme.SelfColor
	}
	fmt.Fprintf(b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n",
		ui.Tag(senderColor), sender, formatTimestamp(m.CreatedAt, now), mt.stateLabel(m))

	body := m.Content
	switch {
	case m.Attachment != nil:
		body = fmt.Sprintf("[attachment] %s (%s)", m.Attachment.Name, m.Attachment.MimeType)
	case m.Upload != nil:
		body = fmt.Sprintf("[uploading] %s (%s)", m.Upload.Name, m.Upload.MimeType)
	}
	fmt.Fprintf(b, "[%s]%s[-]\n\n", ui.Tag(mt.theme.StateColor(m.State)), display(body))
}

func (mt *MessageThread) stateLabel(m chat.Message) string {
	switch m.State {
	case chat.Pending:
		return fmt.Sprintf(" [%s]sending…[-]", ui.Tag(mt.theme.PendingColor))
	case chat.Failed:
		reason := string(m.FailedWith)
		if reason == "" {
			reason = "failed"
		}
		return fmt.Sprintf(" [%s::b]not sent (%s), /retry[-:-:-]", ui.Tag(mt.theme.FailedColor), reason)
	}
	return ""
}

// atEnd reports whether the view shows the newest line, so updates only follow the
// conversation when the user has not scrolled up.
func (mt *MessageThread) atEnd() bool {
	row, _ := mt.messages.GetScrollOffset()
	_, _, _, height := mt.messages.GetInnerRect()
	lines := mt.messages.GetOriginalLineCount()
	return row+height >= lines || lines == 0
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// Text returns the rendered thread without color tags.
func (mt *MessageThread) Text() string {
	return mt.messages.GetText(true)
}
