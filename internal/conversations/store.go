// Package conversations keeps the ordered conversation list with previews and
// unread counters.
package conversations

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/matchchat/internal/bus"
	"github.com/matheus3301/matchchat/internal/chat"
	"go.uber.org/zap"
)

// Lister fetches the conversation list. silent only affects loading indicators.
type Lister interface {
	ListConversations(ctx context.Context, silent bool) ([]chat.Conversation, error)
}

// Store is the in-memory conversation list.
type Store struct {
	api    Lister
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex
	convs  []chat.Conversation
	loaded bool
	synced bool
}

// NewStore creates an empty, unloaded list.
func NewStore(api Lister, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{api: api, bus: b, logger: logger}
}

// Refresh fetches the full list and replaces the contents. Unless silent, a loading
// event is published first. On error the previous list is retained.
func (s *Store) Refresh(ctx context.Context, silent bool) ([]chat.Conversation, error) {
	if !silent {
		s.bus.Emit(bus.ConversationsLoading, nil)
	}

	convs, err := s.api.ListConversations(ctx, silent)
	if err != nil {
		return nil, fmt.Errorf("refresh conversations: %w", err)
	}

	s.mu.Lock()
	prev := make(map[string]*chat.Preview, len(s.convs))
	for _, c := range s.convs {
		prev[c.ID] = c.LastMessage
	}
	s.convs = cloneAll(convs)
	for i := range s.convs {
		c := &s.convs[i]
		if c.UnreadCount < 0 {
			c.UnreadCount = 0
		}
		// A list fetched before a local send or poll landed never rolls the preview back.
		if p := prev[c.ID]; p != nil && (c.LastMessage == nil || newer(*p, *c.LastMessage)) {
			kept := *p
			c.LastMessage = &kept
		}
	}
	sortConversations(s.convs)
	s.loaded = true
	s.synced = true
	out := cloneAll(s.convs)
	s.mu.Unlock()

	s.logger.Debug("conversations refreshed", zap.Int("count", len(out)), zap.Bool("silent", silent))
	s.bus.Emit(bus.ConversationsUpdated, nil)
	return out, nil
}

// Hydrate seeds the list from the local cache. It never replaces a server snapshot.
func (s *Store) Hydrate(convs []chat.Conversation) {
	s.mu.Lock()
	if s.synced {
		s.mu.Unlock()
		return
	}
	s.convs = cloneAll(convs)
	sortConversations(s.convs)
	s.loaded = true
	s.mu.Unlock()
	s.bus.Emit(bus.ConversationsUpdated, nil)
}

// ApplyOutgoing reflects a message sent by this user: it becomes the preview and
// the unread counter is cleared.
func (s *Store) ApplyOutgoing(conversationID string, m chat.Message) {
	s.update(conversationID, func(c *chat.Conversation) bool {
		c.LastMessage = chat.PreviewOf(m)
		c.UnreadCount = 0
		return true
	})
}

// ApplyIncoming reflects a received message. It is a no-op when the message is
// already reflected by the preview (same id or older).
func (s *Store) ApplyIncoming(conversationID string, m chat.Message, isActive bool) {
	s.update(conversationID, func(c *chat.Conversation) bool {
		next := chat.PreviewOf(m)
		if p := c.LastMessage; p != nil && (p.MessageID == m.ID || !newer(*next, *p)) {
			return false
		}
		c.LastMessage = next
		if !isActive {
			c.UnreadCount++
		}
		return true
	})
}

// ResetUnread clears the unread counter of a conversation.
func (s *Store) ResetUnread(conversationID string) {
	s.update(conversationID, func(c *chat.Conversation) bool {
		if c.UnreadCount == 0 {
			return false
		}
		c.UnreadCount = 0
		return true
	})
}

func (s *Store) update(conversationID string, fn func(*chat.Conversation) bool) {
	s.mu.Lock()
	i := slices.IndexFunc(s.convs, func(c chat.Conversation) bool { return c.ID == conversationID })
	if i < 0 {
		s.mu.Unlock()
		s.logger.Debug("update for unknown conversation", zap.String("conversation_id", conversationID))
		return
	}
	changed := fn(&s.convs[i])
	if changed {
		sortConversations(s.convs)
	}
	s.mu.Unlock()

	if changed {
		s.bus.Emit(bus.ConversationsUpdated, nil)
	}
}

// Snapshot returns the list in display order.
func (s *Store) Snapshot() []chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.convs)
}

// Get returns a single conversation.
func (s *Store) Get(conversationID string) (chat.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.ID == conversationID {
			return c.Clone(), true
		}
	}
	return chat.Conversation{}, false
}

// Loaded reports whether a server or cached snapshot was ever installed.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Synced reports whether the list was ever fetched from the server.
func (s *Store) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// Filter returns the current list narrowed by query.
func (s *Store) Filter(query string) []chat.Conversation {
	return Filter(s.Snapshot(), query)
}

// newer reports whether preview a sorts after b in thread order.
func newer(a, b chat.Preview) bool {
	return chat.Compare(
		chat.Message{ID: a.MessageID, CreatedAt: a.CreatedAt},
		chat.Message{ID: b.MessageID, CreatedAt: b.CreatedAt},
	) > 0
}

func cloneAll(convs []chat.Conversation) []chat.Conversation {
	out := make([]chat.Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.Clone()
	}
	return out
}
