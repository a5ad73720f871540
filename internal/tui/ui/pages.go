package ui

import "github.com/rivo/tview"

// Component is a view managed by Pages. Init runs once on Add; Start and Stop
// bracket the time the view is on top, which is when it may poll.
type Component interface {
	Name() string
	Init()
	Start()
	Stop()
	Hints() []MenuHint
}

// Pages is a stack of components. The component on top is started and every
// component below it is stopped, so only the visible view polls.
type Pages struct {
	*tview.Pages
	stack      []string
	components map[string]Component
	onChange   func(stack []string)
}

// NewPages creates a new stack-based page manager.
func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		components: make(map[string]Component),
	}
}

// Add registers a component under its page name.
func (p *Pages) Add(name string, c Component, item tview.Primitive) {
	p.components[name] = c
	c.Init()
	p.AddPage(name, item, true, false)
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push stops the current page, then shows and starts name.
func (p *Pages) Push(name string) {
	if cur := p.Current(); cur != "" {
		p.HidePage(cur)
		p.stop(cur)
	}
	p.stack = append(p.stack, name)
	p.show(name)
}

// Pop stops and removes the top page and restarts the previous one. Returns the
// name of the popped page, or empty if only the root page is left.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stop(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.stack[len(p.stack)-1])
	return top
}

// Current returns the name of the current (top) page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// CurrentComponent returns the component on top, if any.
func (p *Pages) CurrentComponent() Component {
	return p.components[p.Current()]
}

// Stack returns a copy of the current page stack.
func (p *Pages) Stack() []string {
	s := make([]string, len(p.stack))
	copy(s, p.stack)
	return s
}

// Reset stops every page and shows only name.
func (p *Pages) Reset(name string) {
	if cur := p.Current(); cur != "" {
		p.stop(cur)
	}
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.show(name)
}

// StopAll stops the top page. Pages below it are already stopped.
func (p *Pages) StopAll() {
	if cur := p.Current(); cur != "" {
		p.stop(cur)
	}
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	if c, ok := p.components[name]; ok {
		c.Start()
	}
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}

func (p *Pages) stop(name string) {
	if c, ok := p.components[name]; ok {
		c.Stop()
	}
}
