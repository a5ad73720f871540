package thread

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/matchchat/internal/chat"
	"go.uber.org/zap"
)

// Fetcher loads the message history of a conversation.
type Fetcher interface {
	ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
}

// Store holds the ordered message sequence of each opened conversation. Server-sourced
// messages and local-only (pending or failed) entries live in the same sequence,
// ordered by (created-at, id).
type Store struct {
	api    Fetcher
	logger *zap.Logger

	mu      sync.Mutex
	threads map[string][]chat.Message
}

// NewStore creates an empty thread store.
func NewStore(api Fetcher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:     api,
		logger:  logger,
		threads: make(map[string][]chat.Message),
	}
}

// LoadInitial fetches the history of a conversation and replaces its cached
// server-sourced messages. Local-only entries survive the replacement. On error the
// cached thread is left untouched.
func (s *Store) LoadInitial(ctx context.Context, conversationID string) ([]chat.Message, error) {
	fetched, err := s.api.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", conversationID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var local []chat.Message
	for _, m := range s.threads[conversationID] {
		if m.Local() {
			local = append(local, m)
		}
	}
	s.threads[conversationID] = local
	s.mergeLocked(conversationID, fetched)
	return cloneAll(s.threads[conversationID]), nil
}

// Refresh fetches the thread and merges it, returning the messages not seen before.
func (s *Store) Refresh(ctx context.Context, conversationID string) ([]chat.Message, error) {
	fetched, err := s.api.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("refresh thread %s: %w", conversationID, err)
	}
	return s.MergeFetched(conversationID, fetched), nil
}

// MergeFetched merges a fetched batch into the thread, de-duplicating by id, and
// returns the messages that were not present before. Merging the same batch twice
// changes nothing the second time.
func (s *Store) MergeFetched(conversationID string, fetched []chat.Message) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeLocked(conversationID, fetched)
}

func (s *Store) mergeLocked(conversationID string, fetched []chat.Message) []chat.Message {
	msgs := s.threads[conversationID]
	byID := make(map[string]int, len(msgs))
	for i, m := range msgs {
		byID[m.ID] = i
	}

	var added []chat.Message
	for _, f := range fetched {
		if f.ID == "" {
			continue
		}
		f = f.Clone()
		f.ConversationID = conversationID
		if f.State == "" || f.Local() {
			f.State = chat.Sent
		}

		// An unresolved optimistic entry is authoritative for its temp id.
		if f.ClientID != "" {
			if i, ok := byID[f.ClientID]; ok && msgs[i].Local() {
				continue
			}
		}

		if i, ok := byID[f.ID]; ok {
			existing := msgs[i]
			f.Read = f.Read || existing.Read
			if f.ClientID == "" {
				f.ClientID = existing.ClientID
			}
			msgs[i] = f
			continue
		}
		byID[f.ID] = len(msgs)
		msgs = append(msgs, f)
		added = append(added, f.Clone())
	}

	chat.SortMessages(msgs)
	s.threads[conversationID] = msgs
	chat.SortMessages(added)
	return added
}

// AppendOptimistic inserts a pending message at the newest position of its thread.
func (s *Store) AppendOptimistic(m chat.Message) (chat.Message, error) {
	if m.State != chat.Pending {
		return chat.Message{}, fmt.Errorf("append optimistic %s: state is %s, want %s", m.ID, m.State, chat.Pending)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.threads[m.ConversationID]
	if slices.ContainsFunc(msgs, func(e chat.Message) bool { return e.ID == m.ID }) {
		return chat.Message{}, fmt.Errorf("append optimistic %s: duplicate id", m.ID)
	}
	if n := len(msgs); n > 0 && !m.CreatedAt.After(msgs[n-1].CreatedAt) {
		m.CreatedAt = msgs[n-1].CreatedAt.Add(time.Millisecond)
	}
	m = m.Clone()
	s.threads[m.ConversationID] = append(msgs, m)
	return m.Clone(), nil
}

// ConfirmOptimistic replaces the temp entry with the server-confirmed message,
// positioned by the server timestamp. If a poll already delivered the confirmed id,
// the temp entry is dropped instead of duplicated.
func (s *Store) ConfirmOptimistic(tempID string, confirmed chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversationID, idx, ok := s.locateLocked(tempID)
	if !ok {
		return chat.Message{}, fmt.Errorf("confirm %s: %w", tempID, chat.ErrUnknownMessage)
	}
	msgs := s.threads[conversationID]
	if err := chat.Transition(msgs[idx].State, chat.Sent); err != nil {
		return chat.Message{}, fmt.Errorf("confirm %s: %w", tempID, err)
	}

	confirmed = confirmed.Clone()
	confirmed.ConversationID = conversationID
	confirmed.ClientID = tempID
	confirmed.State = chat.Sent
	confirmed.FailedWith = chat.KindNone
	confirmed.Upload = nil

	msgs = slices.Delete(msgs, idx, idx+1)
	if i := slices.IndexFunc(msgs, func(e chat.Message) bool { return e.ID == confirmed.ID }); i >= 0 {
		confirmed.Read = confirmed.Read || msgs[i].Read
		msgs[i] = confirmed
	} else {
		msgs = append(msgs, confirmed)
	}
	chat.SortMessages(msgs)
	s.threads[conversationID] = msgs
	return confirmed.Clone(), nil
}

// FailOptimistic marks the temp entry failed in place, keeping its content and
// attachment so the caller can offer a retry.
func (s *Store) FailOptimistic(tempID string, kind chat.ErrorKind) (chat.Message, error) {
	return s.transition(tempID, chat.Failed, func(m *chat.Message) {
		m.FailedWith = kind
	})
}

// Retrying moves a failed entry back to pending for a user-initiated retry.
func (s *Store) Retrying(tempID string) (chat.Message, error) {
	return s.transition(tempID, chat.Pending, func(m *chat.Message) {
		m.FailedWith = chat.KindNone
	})
}

func (s *Store) transition(tempID string, to chat.DeliveryState, apply func(*chat.Message)) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversationID, idx, ok := s.locateLocked(tempID)
	if !ok {
		return chat.Message{}, fmt.Errorf("%s %s: %w", to, tempID, chat.ErrUnknownMessage)
	}
	m := &s.threads[conversationID][idx]
	if err := chat.Transition(m.State, to); err != nil {
		return chat.Message{}, fmt.Errorf("%s %s: %w", to, tempID, err)
	}
	m.State = to
	apply(m)
	return m.Clone(), nil
}

// locateLocked finds a local entry by its temp id.
func (s *Store) locateLocked(tempID string) (string, int, bool) {
	for conversationID, msgs := range s.threads {
		for i, m := range msgs {
			if m.ID == tempID && m.Local() {
				return conversationID, i, true
			}
		}
	}
	return "", 0, false
}

// MarkRead flips the read flag of the given messages and returns how many changed.
// Callers invoke it only after the server acknowledged the read receipt.
func (s *Store) MarkRead(conversationID string, ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	msgs := s.threads[conversationID]
	for i := range msgs {
		if !msgs[i].Read && slices.Contains(ids, msgs[i].ID) {
			msgs[i].Read = true
			changed++
		}
	}
	return changed
}

// Unread returns the ids of received messages not yet marked read.
func (s *Store) Unread(conversationID, selfID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, m := range s.threads[conversationID] {
		if m.SenderID != selfID && !m.Read && !m.Local() {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Lookup returns a message of any thread by id.
func (s *Store) Lookup(id string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msgs := range s.threads {
		for _, m := range msgs {
			if m.ID == id {
				return m.Clone(), true
			}
		}
	}
	return chat.Message{}, false
}

// Snapshot returns the thread in storage order (oldest first).
func (s *Store) Snapshot(conversationID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.threads[conversationID])
}

// Newest returns the thread newest-first for display.
func (s *Store) Newest(conversationID string) []chat.Message {
	return chat.Newest(s.Snapshot(conversationID))
}

// Loaded reports whether a thread is cached for the conversation.
func (s *Store) Loaded(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.threads[conversationID]
	return ok
}

// Hydrate seeds a thread from the local cache unless it is already present.
func (s *Store) Hydrate(conversationID string, msgs []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[conversationID]; ok {
		return
	}
	cached := cloneAll(msgs)
	for i := range cached {
		cached[i].ConversationID = conversationID
	}
	chat.SortMessages(cached)
	s.threads[conversationID] = cached
}

// Reset drops every cached thread.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string][]chat.Message)
}

func cloneAll(msgs []chat.Message) []chat.Message {
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
