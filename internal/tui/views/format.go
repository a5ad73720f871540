package views

import (
	"time"

	"github.com/rivo/tview"
)

func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// display escapes s for a dynamic-color view.
func display(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}

// lifecycle holds the Start and Stop hooks of a view.
type lifecycle struct {
	onStart func()
	onStop  func()
}

// SetLifecycle sets the hooks run when the view comes to the front and leaves it.
func (l *lifecycle) SetLifecycle(onStart, onStop func()) {
	l.onStart = onStart
	l.onStop = onStop
}

// Init implements Component.
func (l *lifecycle) Init() {}

// Start implements Component.
func (l *lifecycle) Start() {
	if l.onStart != nil {
		l.onStart()
	}
}

// Stop implements Component.
func (l *lifecycle) Stop() {
	if l.onStop != nil {
		l.onStop()
	}
}
