package bus

import "time"

// Event kinds published by the sync engine. Subscribers filter by namespace prefix,
// e.g. "message." or "conversations.".
const (
	ConversationsLoading = "conversations.loading"
	ConversationsUpdated = "conversations.updated"
	ThreadUpdated        = "thread.updated"
	MessagePending       = "message.pending"
	MessageSendAck       = "message.send_ack"
	MessageSendFailed    = "message.send_failed"
	ReceiptsAcked        = "receipts.acked"
	StatusChanged        = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessageEvent is the payload of message.* events.
type MessageEvent struct {
	ConversationID string
	TempID         string
	MessageID      string
	Error          string
}

// ReceiptEvent is the payload of receipts.acked.
type ReceiptEvent struct {
	ConversationID string
	MessageIDs     []string
}
