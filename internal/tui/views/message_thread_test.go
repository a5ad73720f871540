package views

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/tui/ui"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
)

func TestMessageThreadStates(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	mt := NewMessageThread(ui.DefaultTheme(), "me")
	mt.now = func() time.Time { return at }
	mt.Open("c1", "Alice")

	mt.Update([]chat.Message{
		{ID: "1", SenderID: "alice", Content: "hey", CreatedAt: at, State: chat.Sent},
		{ID: "tmp-a", SenderID: "me", Content: "offline reply", CreatedAt: at, State: chat.Failed, FailedWith: chat.KindNetwork},
		{ID: "tmp-b", SenderID: "me", Upload: &chat.PendingAttachment{Name: "cat.png", MimeType: "image/png"}, CreatedAt: at, State: chat.Pending},
	})

	text := mt.Text()
	assert.Contains(t, text, "Them 09:30")
	assert.Contains(t, text, "hey")
	assert.Contains(t, text, "not sent (NetworkError)")
	assert.Contains(t, text, "sending…")
	assert.Contains(t, text, "cat.png (image/png)")
	assert.Equal(t, "tmp-a", mt.LastFailed())
	assert.Equal(t, "c1", mt.ConversationID())
	assert.Equal(t, "Alice", mt.Name())
}

func TestMessageThreadSubmit(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme(), "me")
	var got []string
	mt.SetOnSubmit(func(text string) { got = append(got, text) })

	mt.Composer().SetText("hello")
	enter := tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
	mt.Composer().InputHandler()(enter, func(tview.Primitive) {})
	assert.Equal(t, []string{"hello"}, got)
	assert.Equal(t, "", mt.Composer().GetText())
}

func TestMessageThreadIgnoresBlankLines(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme(), "me")
	called := false
	mt.SetOnSubmit(func(string) { called = true })

	mt.Composer().SetText("   ")
	enter := tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
	mt.Composer().InputHandler()(enter, func(tview.Primitive) {})
	assert.False(t, called)
}
