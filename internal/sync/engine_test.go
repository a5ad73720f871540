package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/matchchat/internal/attachment"
	"github.com/matheus3301/matchchat/internal/bus"
	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/chattest"
	"github.com/matheus3301/matchchat/internal/conversations"
	"github.com/matheus3301/matchchat/internal/outbox"
	"github.com/matheus3301/matchchat/internal/poll"
	"github.com/matheus3301/matchchat/internal/receipts"
	"github.com/matheus3301/matchchat/internal/status"
	"github.com/matheus3301/matchchat/internal/store"
	"github.com/matheus3301/matchchat/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	api    *chattest.FakeAPI
	clock  *clockwork.FakeClock
	engine *Engine
}

func newHarness(t *testing.T, cache Cache) *harness {
	t.Helper()
	api := chattest.NewFakeAPI("me")
	clock := clockwork.NewFakeClock()
	b := bus.New()

	list := conversations.NewStore(api, b, nil)
	threads := thread.NewStore(api, nil)
	pipeline := attachment.NewPipeline(api, nil)
	var journal outbox.Journal
	if cache != nil {
		journal = cache.(outbox.Journal)
	}
	e := NewEngine(Deps{
		SelfID:  "me",
		List:    list,
		Threads: threads,
		Tracker: receipts.NewTracker(api, threads, list, "me", b, nil),
		Queue: outbox.NewQueue(outbox.Deps{
			Sender:   api,
			Uploader: pipeline,
			Thread:   threads,
			List:     list,
			Journal:  journal,
			SelfID:   "me",
			Bus:      b,
			Clock:    clock,
		}),
		Pipeline:   pipeline,
		Scheduler:  poll.NewScheduler(clock, nil),
		Machine:    status.NewMachine(b),
		Reconciler: NewReconciler(cache, nil),
		Bus:        b,
	})
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return &harness{api: api, clock: clock, engine: e}
}

func bob() chat.Participant {
	return chat.Participant{ID: "bob", DisplayName: "Bob"}
}

func offline() error {
	return chat.E(chat.KindNetwork, "list conversations", errors.New("connection refused"))
}

func TestThreadRefreshMergesWithoutDuplicates(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m1 := h.api.Msg("c1", "1", "bob", 1, "hi")
	m2 := h.api.Msg("c1", "2", "bob", 2, "there")

	h.api.SetMessages("c1", m1)
	require.NoError(t, h.engine.RefreshThread(ctx, "c1"))
	h.api.SetMessages("c1", m1, m2)
	require.NoError(t, h.engine.RefreshThread(ctx, "c1"))
	require.NoError(t, h.engine.RefreshThread(ctx, "c1"))

	got := h.engine.Thread("c1")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, "2", h.engine.ThreadNewest("c1")[0].ID)
}

func TestFocusThreadAcknowledgesUnread(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.api.SetConversations(chat.Conversation{ID: "c1", Other: bob(), UnreadCount: 3})
	h.api.SetMessages("c1",
		h.api.Msg("c1", "1", "bob", 1, "a"),
		h.api.Msg("c1", "2", "bob", 2, "b"),
		h.api.Msg("c1", "3", "bob", 3, "c"),
	)

	require.NoError(t, h.engine.FocusList(ctx))
	c, ok := h.engine.Conversation("c1")
	require.True(t, ok)
	assert.Equal(t, 3, c.UnreadCount)

	require.NoError(t, h.engine.FocusThread(ctx, "c1"))

	calls := h.api.MarkReads()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"1", "2", "3"}, calls[0].MessageIDs)

	c, _ = h.engine.Conversation("c1")
	assert.Equal(t, 0, c.UnreadCount)
	for _, m := range h.engine.Thread("c1") {
		assert.True(t, m.Read, "message %s", m.ID)
	}

	// Nothing left to acknowledge.
	n, err := h.engine.ObserveReads(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, h.api.MarkReads(), 1)
}

func TestFirstLoadFailureIsUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	h.api.Fail(chattest.OpList, offline())

	err := h.engine.FocusList(context.Background())
	require.Error(t, err)
	assert.Equal(t, chat.KindNetwork, chat.KindOf(err))
	assert.Equal(t, status.Unavailable, h.engine.Status())
	assert.True(t, h.engine.Status().Blocking())
}

func TestFailureAfterLoadKeepsSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.api.SetConversations(chat.Conversation{ID: "c1", Other: bob()})

	require.NoError(t, h.engine.RefreshList(ctx, false))
	assert.Equal(t, status.Ready, h.engine.Status())

	h.api.Fail(chattest.OpList, offline())
	require.NoError(t, h.engine.RefreshList(ctx, true))
	assert.Equal(t, status.Stale, h.engine.Status())
	assert.Len(t, h.engine.Conversations(), 1)

	h.api.Fail(chattest.OpList, nil)
	require.NoError(t, h.engine.RefreshList(ctx, true))
	assert.Equal(t, status.Ready, h.engine.Status())
}

func TestAuthFailureRequiresSignIn(t *testing.T) {
	h := newHarness(t, nil)
	h.api.SetConversations(chat.Conversation{ID: "c1", Other: bob()})
	require.NoError(t, h.engine.RefreshList(context.Background(), false))

	h.api.Fail(chattest.OpList, chat.E(chat.KindAuth, "list conversations", errors.New("401")))
	err := h.engine.RefreshList(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, chat.KindAuth, chat.KindOf(err))
	assert.Equal(t, status.AuthRequired, h.engine.Status())
}

func TestBackgroundThreadCountsIncoming(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.api.SetConversations(chat.Conversation{ID: "c2", Other: bob()})
	require.NoError(t, h.engine.RefreshList(ctx, false))

	m1 := h.api.Msg("c2", "1", "bob", 1, "first")
	h.api.SetMessages("c2", m1)
	require.NoError(t, h.engine.RefreshThread(ctx, "c2"))

	c, _ := h.engine.Conversation("c2")
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, "1", c.LastMessage.MessageID)
	assert.Equal(t, 0, c.UnreadCount)

	h.api.SetMessages("c2", m1, h.api.Msg("c2", "2", "bob", 2, "second"))
	require.NoError(t, h.engine.RefreshThread(ctx, "c2"))

	c, _ = h.engine.Conversation("c2")
	assert.Equal(t, "second", c.LastMessage.Content)
	assert.Equal(t, 1, c.UnreadCount)
	assert.Empty(t, h.api.MarkReads())
}

func TestBackgroundThreadNewestFirstBatch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.api.SetConversations(chat.Conversation{ID: "c2", Other: bob()})
	require.NoError(t, h.engine.RefreshList(ctx, false))

	m1 := h.api.Msg("c2", "1", "bob", 1, "first")
	h.api.SetMessages("c2", m1)
	require.NoError(t, h.engine.RefreshThread(ctx, "c2"))

	h.api.SetMessages("c2",
		h.api.Msg("c2", "3", "bob", 3, "third"),
		h.api.Msg("c2", "2", "bob", 2, "second"),
		m1,
	)
	require.NoError(t, h.engine.RefreshThread(ctx, "c2"))

	c, _ := h.engine.Conversation("c2")
	assert.Equal(t, 2, c.UnreadCount)
	assert.Equal(t, "third", c.LastMessage.Content)
}

func TestCanceledRefreshSkipsAPI(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, h.engine.RefreshList(ctx, true))
	assert.NoError(t, h.engine.RefreshThread(ctx, "c1"))
	assert.Zero(t, h.api.Calls(chattest.OpList))
	assert.Zero(t, h.api.Calls(chattest.OpMessages))
}

func TestFocusedThreadPolls(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	m1 := h.api.Msg("c1", "1", "bob", 1, "hi")
	h.api.SetMessages("c1", m1)

	require.NoError(t, h.engine.FocusThread(ctx, "c1"))
	h.clock.BlockUntil(1)

	h.api.SetMessages("c1", m1, h.api.Msg("c1", "2", "bob", 2, "new"))
	h.clock.Advance(poll.DefaultThreadInterval)
	require.Eventually(t, func() bool { return len(h.engine.Thread("c1")) == 2 }, time.Second, time.Millisecond)

	// The new message is acknowledged because the thread is on screen.
	require.Eventually(t, func() bool { return len(h.api.MarkReads()) == 2 }, time.Second, time.Millisecond)
}

func TestFocusingAnotherThreadStopsPolling(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.engine.FocusThread(ctx, "c1"))
	require.NoError(t, h.engine.FocusThread(ctx, "c2"))
	h.clock.BlockUntil(1)

	before := h.api.Calls(chattest.OpMessages)
	h.clock.Advance(poll.DefaultThreadInterval)
	require.Eventually(t, func() bool { return h.api.Calls(chattest.OpMessages) == before+1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return h.api.Calls(chattest.OpMessages) > before+1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSendOutlivesCaller(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.engine.FocusThread(context.Background(), "c1"))
	h.api.Hold()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	pending, err := h.engine.Send(ctx, "c1", "hello", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, chat.Pending, pending.State)

	// Leaving the screen does not cancel the send.
	h.engine.BlurThread("c1")
	h.api.Release()
	require.NoError(t, h.engine.Close(context.Background()))

	got := h.engine.Thread("c1")
	require.Len(t, got, 1)
	assert.Equal(t, "1001", got[0].ID)
	assert.Equal(t, chat.Sent, got[0].State)
	assert.Equal(t, pending.ID, got[0].ClientID)
	assert.Len(t, h.api.Sent(), 1)
	assert.Equal(t, status.Closed, h.engine.Status())
}

func TestRetryAfterOfflineSend(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.api.Fail(chattest.OpSend, chat.E(chat.KindNetwork, "send message", errors.New("offline")))

	failed, err := h.engine.Send(ctx, "c1", "hello", nil)
	require.Error(t, err)
	assert.Equal(t, chat.Failed, failed.State)

	h.api.Fail(chattest.OpSend, nil)
	sent, err := h.engine.Retry(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, "1001", sent.ID)
	assert.Equal(t, "hello", sent.Content)
	require.Len(t, h.engine.Thread("c1"), 1)

	_, err = h.engine.Retry(ctx, "tmp-missing")
	assert.ErrorIs(t, err, chat.ErrUnknownMessage)
}

func TestSendAfterCloseIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.engine.Close(context.Background()))
	require.NoError(t, h.engine.Close(context.Background()))

	_, err := h.engine.Send(context.Background(), "c1", "late", nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, h.engine.Thread("c1"))
}

func openCache(t *testing.T, path string) *store.DB {
	t.Helper()
	db, err := store.Open(path)
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHydrateRestoresCachedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first := newHarness(t, openCache(t, path))
	first.api.SetConversations(chat.Conversation{ID: "c1", Other: bob()})
	first.api.SetMessages("c1", first.api.Msg("c1", "1", "bob", 1, "hi"))
	require.NoError(t, first.engine.RefreshList(ctx, false))
	require.NoError(t, first.engine.RefreshThread(ctx, "c1"))
	first.api.Fail(chattest.OpSend, chat.E(chat.KindNetwork, "send message", errors.New("offline")))
	_, err := first.engine.Send(ctx, "c1", "unsent", nil)
	require.Error(t, err)
	_, ok := first.engine.LastSynced()
	assert.True(t, ok)
	require.NoError(t, first.engine.Close(ctx))

	second := newHarness(t, openCache(t, path))
	require.NoError(t, second.engine.Hydrate())
	assert.Equal(t, status.Stale, second.engine.Status())
	require.Len(t, second.engine.Conversations(), 1)

	got := second.engine.Thread("c1")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "unsent", got[1].Content)
	assert.Equal(t, chat.Failed, got[1].State)

	// The server is unreachable but the cached list is still shown.
	second.api.Fail(chattest.OpList, offline())
	require.NoError(t, second.engine.RefreshList(ctx, true))
	assert.Equal(t, status.Stale, second.engine.Status())
}

func TestReconcilerWithoutCache(t *testing.T) {
	r := NewReconciler(nil, nil)
	snap, err := r.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Conversations)
	r.SaveList([]chat.Conversation{{ID: "c1"}})
	_, ok := r.Checkpoint(listCheckpoint)
	assert.False(t, ok)
}
