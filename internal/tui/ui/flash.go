package ui

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// FlashMessage is a flash notification with a level and expiry.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the current transient notification.
type FlashModel struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	current FlashMessage
}

// NewFlashModel creates a new flash model. A nil clock uses the real one.
func NewFlashModel(clock clockwork.Clock) *FlashModel {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FlashModel{clock: clock}
}

// Info sets an info-level flash message.
func (f *FlashModel) Info(msg string) {
	f.set(msg, FlashInfo, 5*time.Second)
}

// Warn sets a warn-level flash message.
func (f *FlashModel) Warn(msg string) {
	f.set(msg, FlashWarn, 8*time.Second)
}

// Err reports a failure. Validation problems are the user's to fix and show as
// warnings; everything else is an error.
func (f *FlashModel) Err(err error) {
	switch chat.KindOf(err) {
	case chat.KindValidation:
		f.set(describe(err), FlashWarn, 8*time.Second)
	default:
		f.set(describe(err), FlashErr, 10*time.Second)
	}
}

func describe(err error) string {
	var ce *chat.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case chat.KindNetwork:
			return "Offline: " + ce.Err.Error()
		case chat.KindAuth:
			return "Signed out: check api.token"
		case chat.KindServer:
			return fmt.Sprintf("Server error: %v", ce.Err)
		}
	}
	return err.Error()
}

func (f *FlashModel) set(msg string, level FlashLevel, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = FlashMessage{
		Text:    msg,
		Level:   level,
		Expires: f.clock.Now().Add(d),
	}
}

// Get returns the current flash message, or nil if expired.
func (f *FlashModel) Get() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.clock.Now().Before(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders a flash message on the bar.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}

	var color string
	switch msg.Level {
	case FlashInfo:
		color = colorName(fb.theme.FlashInfoColor)
	case FlashWarn:
		color = colorName(fb.theme.FlashWarnColor)
	case FlashErr:
		color = colorName(fb.theme.FlashErrColor)
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", color, tview.Escape(msg.Text))
}
