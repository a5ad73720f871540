// Package tui is the terminal presentation layer. It only reads engine snapshots
// and issues engine commands; every refresh is driven by bus events.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/matchchat/internal/attachment"
	"github.com/matheus3301/matchchat/internal/bus"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/status"
	"github.com/matheus3301/matchchat/internal/tui/keys"
	"github.com/matheus3301/matchchat/internal/tui/ui"
	"github.com/matheus3301/matchchat/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Engine is the part of the sync engine the TUI drives.
type Engine interface {
	Conversations() []chat.Conversation
	Conversation(conversationID string) (chat.Conversation, bool)
	Thread(conversationID string) []chat.Message
	Status() status.State
	LastSynced() (time.Time, bool)
	FocusList(ctx context.Context) error
	BlurList()
	RefreshList(ctx context.Context, silent bool) error
	FocusThread(ctx context.Context, conversationID string) error
	BlurThread(conversationID string)
	RefreshThread(ctx context.Context, conversationID string) error
	Stage(ctx context.Context, picker attachment.Picker) (chat.PendingAttachment, bool, error)
	Send(ctx context.Context, conversationID, content string, att *chat.PendingAttachment) (chat.Message, error)
	Retry(ctx context.Context, tempID string) (chat.Message, error)
	Subscribe(namespace string, bufSize int) (<-chan bus.Event, func())
}

const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageHelp          = "help"
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	engine   Engine
	logger   *zap.Logger
	theme    *ui.Theme
	profile  string
	selfID   string
	registry *keys.Registry
	flash    *ui.FlashModel

	pages    *ui.Pages
	info     *ui.ProfileInfo
	brand    *ui.Brand
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	prompt   *ui.Prompt
	flashBar *ui.FlashBar
	body     *tview.Flex

	list    *views.ConversationList
	thread  *views.MessageThread
	details *views.ConversationInfo
	help    *views.HelpView

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI for a profile.
func NewApp(engine Engine, profile, selfID string, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		engine:   engine,
		logger:   logger,
		theme:    theme,
		profile:  profile,
		selfID:   selfID,
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(nil),
		pages:    ui.NewPages(),
		info:     ui.NewProfileInfo(theme),
		brand:    ui.NewBrand(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme),
		prompt:   ui.NewPrompt(theme),
		flashBar: ui.NewFlashBar(theme),
		list:     views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme, selfID),
		details:  views.NewConversationInfo(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupLifecycle()
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

// setupLifecycle ties polling to what is on screen: the list polls while it is
// the front page and a thread polls while it is open.
func (a *App) setupLifecycle() {
	a.list.SetLifecycle(
		func() { a.goCmd("refresh", func(ctx context.Context) error { return a.engine.FocusList(ctx) }) },
		a.engine.BlurList,
	)
	a.thread.SetLifecycle(
		func() {
			id := a.thread.ConversationID()
			a.goCmd("open", func(ctx context.Context) error { return a.engine.FocusThread(ctx, id) })
		},
		func() { a.engine.BlurThread(a.thread.ConversationID()) },
	)
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command", Visible: true,
		Handler: func() { a.activatePrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help", Visible: true,
		Handler: func() { a.push(pageHelp) },
	})

	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Filter", Visible: true,
		Handler: func() { a.activatePrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Refresh", Visible: true,
		Handler: a.refresh,
	})
	for n := '1'; n <= '9'; n++ {
		idx := int(n - '0')
		a.registry.AddView(pageConversations, &keys.Action{
			Key: tcell.KeyRune, Rune: n,
			Handler: func() { a.openThread(a.list.ConversationByIndex(idx)) },
		})
	}

	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'R', Description: "Retry", Visible: true,
		Handler: func() { a.retry("") },
	})
	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Refresh", Visible: true,
		Handler: a.refresh,
	})
	a.registry.AddView(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "Details", Visible: true,
		Handler: a.showDetails,
	})
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, _ int) {
		a.openThread(a.list.ConversationByIndex(row))
	})

	a.thread.SetOnSubmit(a.submit)

	a.prompt.SetOnChange(func(text string) {
		a.list.SetFilter(text)
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptCommand {
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.list.SetFilter("")
		}
		a.hidePrompt()
	})

	a.pages.SetOnChange(func(stack []string) {
		names := make([]string, 0, len(stack))
		for _, n := range stack {
			switch n {
			case pageThread:
				names = append(names, a.thread.Name())
			case pageDetails:
				names = append(names, a.details.Name())
			case pageHelp:
				names = append(names, a.help.Name())
			default:
				names = append(names, a.list.Name())
			}
		}
		a.crumbs.Update(names)
		a.renderMenu()
	})
}

func (a *App) setupLayout() {
	a.pages.Add(pageConversations, a.list, a.list)
	a.pages.Add(pageThread, a.thread, a.thread)
	a.pages.Add(pageDetails, a.details, a.details)
	a.pages.Add(pageHelp, a.help, a.help)

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(a.brand, 18, 0, false)

	a.body = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.body, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	// Text inputs get every key; Esc leaves the composer.
	if focus, ok := a.app.GetFocus().(*tview.InputField); ok {
		if focus == a.thread.Composer() && event.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		return event
	}

	if event.Key() == tcell.KeyEscape {
		if a.pages.Pop() != "" {
			a.focusCurrent()
			return nil
		}
		if a.list.Filter() != "" {
			a.list.SetFilter("")
			return nil
		}
	}

	if a.registry.HandleEvent(a.pages.Current(), event) {
		return nil
	}
	return event
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	events, unsubscribe := a.engine.Subscribe("", 64)
	defer unsubscribe()
	go a.watch(events)
	go a.tick()

	a.pages.Reset(pageConversations)
	a.renderAll()
	a.crumbs.SetBadge(badge(a.engine.Status()))
	a.app.SetFocus(a.list)

	err := a.app.Run()
	a.cancel()
	a.pages.StopAll()
	return err
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// watch redraws whatever an event touched.
func (a *App) watch(events <-chan bus.Event) {
	for {
		select {
		case evt := <-events:
			a.app.QueueUpdateDraw(func() { a.apply(evt) })
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) apply(evt bus.Event) {
	switch evt.Kind {
	case bus.ConversationsUpdated, bus.ReceiptsAcked:
		a.list.Update(a.engine.Conversations())
		a.renderInfo()
	case bus.ThreadUpdated, bus.MessagePending, bus.MessageSendAck:
		a.renderThread()
		a.list.Update(a.engine.Conversations())
	case bus.MessageSendFailed:
		a.renderThread()
		if e, ok := evt.Payload.(bus.MessageEvent); ok && e.Error != "" {
			a.flash.Warn("Message not sent: " + e.Error)
		}
	case bus.StatusChanged:
		a.renderInfo()
		a.brand.SetState(string(a.engine.Status()))
		a.crumbs.SetBadge(badge(a.engine.Status()))
		if c, ok := evt.Payload.(status.StatusChange); ok {
			switch c.To {
			case status.Unavailable:
				a.flash.Warn("Conversations unavailable; press r to retry")
			case status.AuthRequired:
				a.flash.Err(chat.E(chat.KindAuth, "", errors.New("unauthorized")))
			}
		}
	}
	a.flashBar.Update(a.flash.Get())
}

// tick expires flash messages and ages the sync time.
func (a *App) tick() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Update(a.flash.Get())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) renderAll() {
	a.list.Update(a.engine.Conversations())
	a.renderInfo()
	a.renderMenu()
}

func (a *App) renderInfo() {
	convs := a.engine.Conversations()
	unread := 0
	for _, c := range convs {
		unread += c.UnreadCount
	}
	synced, _ := a.engine.LastSynced()
	a.info.Update(&ui.ProfileData{
		Profile:       a.profile,
		UserID:        a.selfID,
		Status:        string(a.engine.Status()),
		Conversations: len(convs),
		Unread:        unread,
		LastSynced:    synced,
	})
}

func (a *App) renderMenu() {
	var hints []ui.MenuHint
	if c := a.pages.CurrentComponent(); c != nil {
		hints = c.Hints()
	}
	a.menu.Update(append(hints, a.registry.Hints(a.pages.Current())...))
}

func (a *App) renderThread() {
	if id := a.thread.ConversationID(); id != "" {
		a.thread.Update(a.engine.Thread(id))
	}
}

func (a *App) push(page string) {
	if a.pages.Current() == page {
		return
	}
	a.pages.Push(page)
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageDetails:
		a.app.SetFocus(a.details)
	case pageHelp:
		a.app.SetFocus(a.help)
	default:
		a.app.SetFocus(a.list)
	}
}

func (a *App) openThread(conversationID string) {
	if conversationID == "" {
		return
	}
	title := conversationID
	if c, ok := a.engine.Conversation(conversationID); ok {
		title = participantTitle(c)
	}
	if a.pages.Current() == pageThread {
		// Switch threads in place so the list does not refresh in between.
		a.thread.Stop()
		a.thread.Open(conversationID, title)
		a.renderThread()
		a.thread.Start()
		a.crumbs.Update([]string{a.list.Name(), a.thread.Name()})
		return
	}
	a.thread.Open(conversationID, title)
	a.renderThread()
	a.push(pageThread)
}

func (a *App) showDetails() {
	c, ok := a.engine.Conversation(a.thread.ConversationID())
	if !ok {
		return
	}
	a.details.Update(c)
	a.push(pageDetails)
}

func (a *App) refresh() {
	switch a.pages.Current() {
	case pageThread:
		id := a.thread.ConversationID()
		a.goCmd("refresh", func(ctx context.Context) error { return a.engine.RefreshThread(ctx, id) })
	default:
		a.goCmd("refresh", func(ctx context.Context) error { return a.engine.RefreshList(ctx, false) })
	}
}

// submit handles one composer line.
func (a *App) submit(text string) {
	id := a.thread.ConversationID()
	cmd := ParseComposer(text)
	switch cmd.Name {
	case ComposeRetry:
		a.retry(cmd.Args)
	case ComposeAttach:
		a.goCmd("attach", func(ctx context.Context) error {
			att, ok, err := a.engine.Stage(ctx, attachment.PathPicker{Path: cmd.Args})
			if err != nil || !ok {
				return err
			}
			_, err = a.engine.Send(ctx, id, "", &att)
			return err
		})
	default:
		a.goCmd("send", func(ctx context.Context) error {
			_, err := a.engine.Send(ctx, id, cmd.Args, nil)
			return err
		})
	}
}

func (a *App) retry(tempID string) {
	if tempID == "" {
		tempID = a.thread.LastFailed()
	}
	if tempID == "" {
		a.flash.Info("Nothing to retry")
		a.flashBar.Update(a.flash.Get())
		return
	}
	a.goCmd("retry", func(ctx context.Context) error {
		_, err := a.engine.Retry(ctx, tempID)
		return err
	})
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "q", "quit":
		a.Stop()
	case "h", "help":
		a.push(pageHelp)
	case "r", "refresh":
		a.refresh()
	case "o", "open":
		a.list.SetFilter(cmd.Args)
		a.openThread(a.list.ConversationByIndex(1))
	default:
		a.flash.Warn("Unknown command: " + cmd.Name)
		a.flashBar.Update(a.flash.Get())
	}
}

func (a *App) activatePrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.body.AddItem(a.prompt, 3, 0, true)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.body.RemoveItem(a.prompt)
	a.focusCurrent()
}

// goCmd runs an engine command off the UI goroutine and reports its failure.
// Send failures are already shown on the message itself.
func (a *App) goCmd(op string, fn func(ctx context.Context) error) {
	go func() {
		err := fn(a.ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		a.logger.Debug("command failed", zap.String("op", op), zap.Error(err))
		if op == "send" || op == "retry" {
			if chat.KindOf(err) != chat.KindValidation && !errors.Is(err, chat.ErrInFlight) {
				return
			}
		}
		a.app.QueueUpdateDraw(func() {
			a.flash.Err(err)
			a.flashBar.Update(a.flash.Get())
		})
	}()
}

func badge(s status.State) string {
	switch s {
	case status.Stale:
		return "offline, showing cached data"
	case status.Unavailable:
		return "offline"
	case status.AuthRequired:
		return "signed out"
	}
	return ""
}

func participantTitle(c chat.Conversation) string {
	switch {
	case c.Other.DisplayName != "":
		return c.Other.DisplayName
	case c.Other.ID != "":
		return c.Other.ID
	}
	return c.ID
}
