// Package receipts acknowledges received messages once the user has seen them.
package receipts

import (
	"context"
	"fmt"

	"github.com/matheus3301/matchchat/internal/bus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Marker submits read acknowledgements to the server.
type Marker interface {
	MarkRead(ctx context.Context, conversationID string, messageIDs []string) error
}

// Thread is the view of the thread store the tracker needs.
type Thread interface {
	Unread(conversationID, selfID string) []string
	MarkRead(conversationID string, ids []string) int
}

// List is the view of the conversation list the tracker needs.
type List interface {
	ResetUnread(conversationID string)
}

// Tracker sends read receipts for visible conversations.
type Tracker struct {
	api    Marker
	thread Thread
	list   List
	selfID string
	bus    *bus.Bus
	logger *zap.Logger

	group singleflight.Group
}

// NewTracker creates a tracker acting for selfID.
func NewTracker(api Marker, thread Thread, list List, selfID string, b *bus.Bus, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{api: api, thread: thread, list: list, selfID: selfID, bus: b, logger: logger}
}

// Observe marks every unread received message of the conversation as read with a
// single request and returns how many were acknowledged. Concurrent observations
// of the same conversation share one request. Local state changes only after the
// server acknowledged.
func (t *Tracker) Observe(ctx context.Context, conversationID string) (int, error) {
	v, err, _ := t.group.Do(conversationID, func() (any, error) {
		ids := t.thread.Unread(conversationID, t.selfID)
		if len(ids) == 0 {
			return 0, nil
		}
		if err := t.api.MarkRead(ctx, conversationID, ids); err != nil {
			return 0, fmt.Errorf("mark read %s: %w", conversationID, err)
		}
		t.thread.MarkRead(conversationID, ids)
		t.list.ResetUnread(conversationID)
		t.bus.Emit(bus.ReceiptsAcked, bus.ReceiptEvent{ConversationID: conversationID, MessageIDs: ids})
		return len(ids), nil
	})
	if err != nil {
		t.logger.Debug("read receipt not acknowledged",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return 0, err
	}
	return v.(int), nil
}
