package thread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/matchchat/internal/chat"
	"github.com/matheus3301/matchchat/internal/chattest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(msgs []chat.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func pending(api *chattest.FakeAPI, conv, tempID, content string, at int) chat.Message {
	return chat.Message{
		ID:             tempID,
		ClientID:       tempID,
		ConversationID: conv,
		SenderID:       "me",
		Content:        content,
		CreatedAt:      api.Base.Add(time.Duration(at) * time.Second),
		State:          chat.Pending,
	}
}

func TestLoadInitialOrdersByTimeThenID(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	api.SetMessages("c1",
		api.Msg("c1", "3", "u2", 20, "c"),
		api.Msg("c1", "1", "u2", 10, "a"),
		api.Msg("c1", "2", "me", 10, "b"),
	)
	s := NewStore(api, nil)

	msgs, err := s.LoadInitial(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(msgs))
	assert.Equal(t, []string{"3", "2", "1"}, ids(s.Newest("c1")))
}

func TestLoadInitialFailureKeepsCache(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	api.SetMessages("c1", api.Msg("c1", "1", "u2", 10, "a"))
	s := NewStore(api, nil)
	_, err := s.LoadInitial(context.Background(), "c1")
	require.NoError(t, err)

	api.Fail(chattest.OpMessages, chat.E(chat.KindNetwork, "list", errors.New("offline")))
	_, err = s.LoadInitial(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, chat.KindNetwork, chat.KindOf(err))
	assert.Equal(t, []string{"1"}, ids(s.Snapshot("c1")))
}

func TestLoadInitialKeepsLocalEntries(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	api.SetMessages("c1", api.Msg("c1", "1", "u2", 10, "a"))
	s := NewStore(api, nil)
	_, err := s.AppendOptimistic(pending(api, "c1", "tmp-a", "hi", 30))
	require.NoError(t, err)

	msgs, err := s.LoadInitial(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "tmp-a"}, ids(msgs))
}

func TestMergeFetchedIsIdempotent(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	m1 := api.Msg("c1", "1", "u2", 10, "a")
	m2 := api.Msg("c1", "2", "u2", 20, "b")

	added := s.MergeFetched("c1", []chat.Message{m1})
	assert.Equal(t, []string{"1"}, ids(added))

	added = s.MergeFetched("c1", []chat.Message{m1, m2})
	assert.Equal(t, []string{"2"}, ids(added))
	assert.Equal(t, []string{"1", "2"}, ids(s.Snapshot("c1")))

	added = s.MergeFetched("c1", []chat.Message{m1, m2})
	assert.Empty(t, added)
	assert.Len(t, s.Snapshot("c1"), 2)
}

func TestMergeFetchedReturnsAddedOldestFirst(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	m1 := api.Msg("c1", "1", "u2", 10, "a")
	m2 := api.Msg("c1", "2", "u2", 20, "b")
	m3 := api.Msg("c1", "3", "u2", 30, "c")
	s.MergeFetched("c1", []chat.Message{m1})

	added := s.MergeFetched("c1", []chat.Message{m3, m2, m1})
	assert.Equal(t, []string{"2", "3"}, ids(added))
}

func TestMergeFetchedKeepsLocalRead(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	s.MergeFetched("c1", []chat.Message{api.Msg("c1", "1", "u2", 10, "a")})
	require.Equal(t, 1, s.MarkRead("c1", []string{"1"}))

	s.MergeFetched("c1", []chat.Message{api.Msg("c1", "1", "u2", 10, "a")})
	assert.True(t, s.Snapshot("c1")[0].Read)
}

func TestAppendOptimisticIsNewest(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	s.MergeFetched("c1", []chat.Message{api.Msg("c1", "1", "u2", 100, "a")})

	// Local clock lags the server.
	m, err := s.AppendOptimistic(pending(api, "c1", "tmp-a", "hi", 5))
	require.NoError(t, err)
	assert.True(t, m.CreatedAt.After(api.Base.Add(100*time.Second)))
	assert.Equal(t, "tmp-a", s.Newest("c1")[0].ID)

	_, err = s.AppendOptimistic(pending(api, "c1", "tmp-a", "again", 6))
	require.Error(t, err)
}

func TestConfirmReplacesTempEntry(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	s.MergeFetched("c1", []chat.Message{api.Msg("c1", "1", "u2", 10, "a")})
	_, err := s.AppendOptimistic(pending(api, "c1", "tmp-a", "hi", 30))
	require.NoError(t, err)

	confirmed := api.Msg("c1", "42", "me", 20, "hi")
	got, err := s.ConfirmOptimistic("tmp-a", confirmed)
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, "tmp-a", got.ClientID)
	assert.Equal(t, chat.Sent, got.State)

	snap := s.Snapshot("c1")
	assert.Equal(t, []string{"1", "42"}, ids(snap))
	assert.Equal(t, api.Base.Add(20*time.Second), snap[1].CreatedAt)
}

func TestConfirmAfterPollDelivered(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	_, err := s.AppendOptimistic(pending(api, "c1", "tmp-a", "hi", 30))
	require.NoError(t, err)

	// A poll returns the server copy before the send response arrives.
	echoed := api.Msg("c1", "42", "me", 20, "hi")
	echoed.ClientID = "tmp-a"
	assert.Empty(t, s.MergeFetched("c1", []chat.Message{echoed}))
	assert.Equal(t, []string{"tmp-a"}, ids(s.Snapshot("c1")))

	_, err = s.ConfirmOptimistic("tmp-a", api.Msg("c1", "42", "me", 20, "hi"))
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, ids(s.Snapshot("c1")))
}

func TestConfirmWhenIDAlreadyPresent(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	_, err := s.AppendOptimistic(pending(api, "c1", "tmp-a", "hi", 30))
	require.NoError(t, err)
	s.MergeFetched("c1", []chat.Message{api.Msg("c1", "42", "me", 20, "hi")})
	require.Len(t, s.Snapshot("c1"), 2)

	_, err = s.ConfirmOptimistic("tmp-a", api.Msg("c1", "42", "me", 20, "hi"))
	require.NoError(t, err)
	snap := s.Snapshot("c1")
	require.Len(t, snap, 1)
	assert.Equal(t, "tmp-a", snap[0].ClientID)
}

func TestFailAndRetryKeepContent(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	m := pending(api, "c1", "tmp-a", "", 30)
	m.Upload = &chat.PendingAttachment{URI: "/tmp/a.png", Name: "a.png", MimeType: "image/png", Size: 10}
	_, err := s.AppendOptimistic(m)
	require.NoError(t, err)

	failed, err := s.FailOptimistic("tmp-a", chat.KindNetwork)
	require.NoError(t, err)
	assert.Equal(t, chat.Failed, failed.State)
	assert.Equal(t, chat.KindNetwork, failed.FailedWith)
	require.NotNil(t, failed.Upload)
	assert.Equal(t, "a.png", failed.Upload.Name)

	_, err = s.FailOptimistic("tmp-a", chat.KindNetwork)
	require.Error(t, err)

	retried, err := s.Retrying("tmp-a")
	require.NoError(t, err)
	assert.Equal(t, chat.Pending, retried.State)
	assert.Equal(t, chat.KindNone, retried.FailedWith)
	assert.NotNil(t, retried.Upload)
}

func TestConfirmUnknownTempID(t *testing.T) {
	s := NewStore(chattest.NewFakeAPI("me"), nil)
	_, err := s.ConfirmOptimistic("tmp-x", chat.Message{ID: "1"})
	require.ErrorIs(t, err, chat.ErrUnknownMessage)
}

func TestUnreadExcludesOwnAndRead(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	s.MergeFetched("c1", []chat.Message{
		api.Msg("c1", "1", "u2", 10, "a"),
		api.Msg("c1", "2", "me", 20, "b"),
		api.Msg("c1", "3", "u2", 30, "c"),
	})
	assert.Equal(t, []string{"1", "3"}, s.Unread("c1", "me"))

	assert.Equal(t, 2, s.MarkRead("c1", []string{"1", "3"}))
	assert.Empty(t, s.Unread("c1", "me"))
	assert.Equal(t, 0, s.MarkRead("c1", []string{"1"}))
}

func TestHydrateDoesNotOverwrite(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	assert.False(t, s.Loaded("c1"))

	s.Hydrate("c1", []chat.Message{api.Msg("c1", "2", "u2", 20, "b"), api.Msg("c1", "1", "u2", 10, "a")})
	assert.True(t, s.Loaded("c1"))
	assert.Equal(t, []string{"1", "2"}, ids(s.Snapshot("c1")))

	s.Hydrate("c1", nil)
	assert.Len(t, s.Snapshot("c1"), 2)
}

func TestSnapshotIsCopy(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	s := NewStore(api, nil)
	s.MergeFetched("c1", []chat.Message{api.Msg("c1", "1", "u2", 10, "a")})

	snap := s.Snapshot("c1")
	snap[0].Content = "mutated"
	assert.Equal(t, "a", s.Snapshot("c1")[0].Content)
}

func TestRefreshMergesPoll(t *testing.T) {
	api := chattest.NewFakeAPI("me")
	api.SetMessages("c1", api.Msg("c1", "1", "u2", 10, "a"))
	s := NewStore(api, nil)

	_, err := s.LoadInitial(context.Background(), "c1")
	require.NoError(t, err)

	api.SetMessages("c1", api.Msg("c1", "1", "u2", 10, "a"), api.Msg("c1", "2", "u2", 20, "b"))
	added, err := s.Refresh(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(added))
	assert.Equal(t, []string{"1", "2"}, ids(s.Snapshot("c1")))
}
