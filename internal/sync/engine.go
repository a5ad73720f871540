// Package sync coordinates the conversation list, threads, sends, read receipts
// and polling of a signed-in user.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/matheus3301/matchchat/internal/attachment"
	"github.com/matheus3301/matchchat/internal/bus"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/conversations"
	"github.com/matheus3301/matchchat/internal/outbox"
	"github.com/matheus3301/matchchat/internal/poll"
	"github.com/matheus3301/matchchat/internal/receipts"
	"github.com/matheus3301/matchchat/internal/status"
	"github.com/matheus3301/matchchat/internal/thread"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("sync engine closed")

// Deps are the components an Engine drives.
type Deps struct {
	SelfID         string
	List           *conversations.Store
	Threads        *thread.Store
	Tracker        *receipts.Tracker
	Queue          *outbox.Queue
	Pipeline       *attachment.Pipeline
	Scheduler      *poll.Scheduler
	Machine        *status.Machine
	Reconciler     *Reconciler
	Bus            *bus.Bus
	Logger         *zap.Logger
	ListInterval   time.Duration
	ThreadInterval time.Duration
}

// Engine is the single entry point of the presentation layer: it reads snapshots
// and issues commands.
type Engine struct {
	selfID         string
	list           *conversations.Store
	threads        *thread.Store
	tracker        *receipts.Tracker
	queue          *outbox.Queue
	pipeline       *attachment.Pipeline
	scheduler      *poll.Scheduler
	machine        *status.Machine
	reconciler     *Reconciler
	bus            *bus.Bus
	logger         *zap.Logger
	listInterval   time.Duration
	threadInterval time.Duration

	// ctx outlives views: sends and uploads run on it so leaving a screen does
	// not cancel them.
	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
	group  singleflight.Group

	mu     gosync.Mutex
	active string
	closed bool
}

// NewEngine creates an engine over d.
func NewEngine(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Reconciler == nil {
		d.Reconciler = NewReconciler(nil, d.Logger)
	}
	if d.ListInterval <= 0 {
		d.ListInterval = poll.DefaultListInterval
	}
	if d.ThreadInterval <= 0 {
		d.ThreadInterval = poll.DefaultThreadInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		selfID:         d.SelfID,
		list:           d.List,
		threads:        d.Threads,
		tracker:        d.Tracker,
		queue:          d.Queue,
		pipeline:       d.Pipeline,
		scheduler:      d.Scheduler,
		machine:        d.Machine,
		reconciler:     d.Reconciler,
		bus:            d.Bus,
		logger:         d.Logger,
		listInterval:   d.ListInterval,
		threadInterval: d.ThreadInterval,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Hydrate seeds the stores from the local cache and restores unsent messages.
func (e *Engine) Hydrate() error {
	snap, err := e.reconciler.Load()
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	if len(snap.Conversations) > 0 {
		e.list.Hydrate(snap.Conversations)
		e.transition(status.Stale)
	}
	for id, msgs := range snap.Threads {
		e.threads.Hydrate(id, msgs)
	}
	e.queue.Restore(snap.Outgoing)

	e.logger.Info("cache hydrated",
		zap.Int("conversations", len(snap.Conversations)),
		zap.Int("threads", len(snap.Threads)),
		zap.Int("outgoing", len(snap.Outgoing)),
	)
	return nil
}

// RefreshList fetches the conversation list. Failures are absorbed while a
// snapshot exists; a failure with nothing to show, or an auth failure, is returned.
func (e *Engine) RefreshList(ctx context.Context, silent bool) error {
	_, err, _ := e.group.Do(string(poll.ListScope), func() (any, error) {
		// A tick canceled by a blur must not reach the API.
		if ctx.Err() != nil {
			return nil, nil
		}
		if !silent {
			e.transition(status.Loading)
		}
		convs, err := e.list.Refresh(ctx, silent)
		if err != nil {
			return nil, e.absorb(err, e.list.Loaded(), zap.String("scope", string(poll.ListScope)))
		}
		e.reconciler.SaveList(convs)
		e.transition(status.Ready)
		return nil, nil
	})
	return err
}

// RefreshThread fetches a thread and merges it into the cached one. Newly received
// messages update the list preview and, when the thread is focused, are
// acknowledged as read.
func (e *Engine) RefreshThread(ctx context.Context, conversationID string) error {
	scope := string(poll.ThreadScope(conversationID))
	_, err, _ := e.group.Do(scope, func() (any, error) {
		if ctx.Err() != nil {
			return nil, nil
		}
		loaded := e.threads.Loaded(conversationID)
		var (
			added []chat.Message
			err   error
		)
		if loaded {
			added, err = e.threads.Refresh(ctx, conversationID)
		} else {
			added, err = e.threads.LoadInitial(ctx, conversationID)
			if n := len(added); n > 0 {
				// The initial load only refreshes the preview, it does not count.
				added = added[n-1:]
			}
		}
		if err != nil {
			return nil, e.absorb(err, loaded, zap.String("conversation_id", conversationID))
		}

		active := e.isActive(conversationID)
		for _, m := range added {
			if m.SenderID == e.selfID || m.Local() {
				continue
			}
			e.list.ApplyIncoming(conversationID, m, active || !loaded)
		}
		e.reconciler.SaveThread(conversationID, e.threads.Snapshot(conversationID))
		if len(added) > 0 {
			e.reconciler.SaveList(e.list.Snapshot())
		}
		e.bus.Emit(bus.ThreadUpdated, conversationID)
		return nil, nil
	})
	if err != nil {
		return err
	}
	if ctx.Err() == nil && e.isActive(conversationID) {
		_, _ = e.ObserveReads(ctx, conversationID)
	}
	return nil
}

// absorb classifies a refresh failure. It returns nil when the failure can be
// absorbed because a snapshot is available.
func (e *Engine) absorb(err error, haveSnapshot bool, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))
	switch {
	case chat.KindOf(err) == chat.KindAuth:
		e.logger.Warn("refresh unauthorized", fields...)
		e.transition(status.AuthRequired)
		return err
	case errors.Is(err, context.Canceled):
		return nil
	case !haveSnapshot:
		e.logger.Warn("refresh failed with nothing cached", fields...)
		e.transition(status.Unavailable)
		return err
	default:
		e.logger.Warn("refresh failed, keeping snapshot", fields...)
		e.transition(status.Stale)
		return nil
	}
}

// FocusList refreshes the list and starts polling it.
func (e *Engine) FocusList(ctx context.Context) error {
	err := e.RefreshList(ctx, e.list.Loaded())
	e.scheduler.Focus(e.ctx, poll.ListScope, e.listInterval, func(ctx context.Context) {
		_ = e.RefreshList(ctx, true)
	})
	return err
}

// BlurList stops polling the list.
func (e *Engine) BlurList() {
	e.scheduler.Blur(poll.ListScope)
}

// FocusThread makes a conversation the active one: it loads the thread, sends read
// receipts and starts polling it. A previously focused thread is blurred.
func (e *Engine) FocusThread(ctx context.Context, conversationID string) error {
	e.mu.Lock()
	prev := e.active
	e.active = conversationID
	e.mu.Unlock()
	if prev != "" && prev != conversationID {
		e.scheduler.Blur(poll.ThreadScope(prev))
	}

	err := e.RefreshThread(ctx, conversationID)
	e.scheduler.Focus(e.ctx, poll.ThreadScope(conversationID), e.threadInterval, func(ctx context.Context) {
		_ = e.RefreshThread(ctx, conversationID)
	})
	return err
}

// BlurThread stops polling a thread. In-flight sends are not affected.
func (e *Engine) BlurThread(conversationID string) {
	e.mu.Lock()
	if e.active == conversationID {
		e.active = ""
	}
	e.mu.Unlock()
	e.scheduler.Blur(poll.ThreadScope(conversationID))
}

// ObserveReads acknowledges unread received messages of a conversation. Failures
// are logged by the tracker and retried on the next observation.
func (e *Engine) ObserveReads(ctx context.Context, conversationID string) (int, error) {
	n, err := e.tracker.Observe(ctx, conversationID)
	if n > 0 {
		e.reconciler.SaveThread(conversationID, e.threads.Snapshot(conversationID))
		e.reconciler.SaveList(e.list.Snapshot())
		e.bus.Emit(bus.ThreadUpdated, conversationID)
	}
	return n, err
}

// Stage validates a picked file before it is sent.
func (e *Engine) Stage(ctx context.Context, picker attachment.Picker) (chat.PendingAttachment, bool, error) {
	return e.pipeline.StageFromPicker(ctx, picker)
}

// Send shows the message as pending and delivers it in the background. The call
// waits for the outcome unless ctx ends first; delivery continues regardless and
// Close waits for it.
func (e *Engine) Send(ctx context.Context, conversationID, content string, att *chat.PendingAttachment) (chat.Message, error) {
	if e.isClosed() {
		return chat.Message{}, ErrClosed
	}
	m, err := e.queue.Enqueue(conversationID, content, att)
	if err != nil {
		return chat.Message{}, err
	}
	e.bus.Emit(bus.ThreadUpdated, conversationID)
	return e.background(ctx, m, func(ctx context.Context) (chat.Message, error) {
		return e.queue.Deliver(ctx, m.ID)
	})
}

// Retry re-sends a failed message with its original content.
func (e *Engine) Retry(ctx context.Context, tempID string) (chat.Message, error) {
	m, ok := e.threads.Lookup(tempID)
	if !ok {
		return chat.Message{}, fmt.Errorf("retry %s: %w", tempID, chat.ErrUnknownMessage)
	}
	return e.background(ctx, m, func(ctx context.Context) (chat.Message, error) {
		return e.queue.Retry(ctx, tempID)
	})
}

type outcome struct {
	msg chat.Message
	err error
}

func (e *Engine) background(ctx context.Context, pending chat.Message, deliver func(context.Context) (chat.Message, error)) (chat.Message, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return chat.Message{}, ErrClosed
	}
	e.wg.Add(1)
	e.mu.Unlock()

	done := make(chan outcome, 1)
	go func() {
		defer e.wg.Done()
		m, err := deliver(e.ctx)
		if chat.KindOf(err) == chat.KindAuth {
			e.transition(status.AuthRequired)
		}
		if !errors.Is(err, chat.ErrInFlight) {
			e.reconciler.SaveThread(pending.ConversationID, e.threads.Snapshot(pending.ConversationID))
			e.bus.Emit(bus.ThreadUpdated, pending.ConversationID)
		}
		done <- outcome{msg: m, err: err}
	}()

	select {
	case o := <-done:
		return o.msg, o.err
	case <-ctx.Done():
		return pending, ctx.Err()
	}
}

// Conversations returns the list in display order.
func (e *Engine) Conversations() []chat.Conversation {
	return e.list.Snapshot()
}

// Conversation returns one conversation of the list.
func (e *Engine) Conversation(conversationID string) (chat.Conversation, bool) {
	return e.list.Get(conversationID)
}

// Filter narrows the list by participant name or preview.
func (e *Engine) Filter(query string) []chat.Conversation {
	return e.list.Filter(query)
}

// Thread returns a thread oldest first.
func (e *Engine) Thread(conversationID string) []chat.Message {
	return e.threads.Snapshot(conversationID)
}

// ThreadNewest returns a thread newest first.
func (e *Engine) ThreadNewest(conversationID string) []chat.Message {
	return e.threads.Newest(conversationID)
}

// Status returns the availability of the conversation list.
func (e *Engine) Status() status.State {
	return e.machine.Current()
}

// LastSynced returns when the list was last fetched from the server.
func (e *Engine) LastSynced() (time.Time, bool) {
	return e.reconciler.Checkpoint(listCheckpoint)
}

// Subscribe forwards to the event bus.
func (e *Engine) Subscribe(namespace string, bufSize int) (<-chan bus.Event, func()) {
	return e.bus.Subscribe(namespace, bufSize)
}

// Close stops polling, waits for in-flight sends until ctx ends and releases the
// engine. It is safe to call more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.active = ""
	e.mu.Unlock()

	e.scheduler.StopAll()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for in-flight sends: %w", ctx.Err())
	}
	e.cancel()
	e.transition(status.Closed)
	return err
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) isActive(conversationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active == conversationID
}

func (e *Engine) transition(to status.State) {
	if err := e.machine.Transition(to); err != nil {
		e.logger.Debug("status transition skipped", zap.String("to", string(to)), zap.Error(err))
	}
}
