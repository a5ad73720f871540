// Package outbox delivers outgoing messages optimistically: a message is shown as
// pending immediately and reconciled with the server response later.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/matchchat/internal/bus"
	"github.com/matheus3301/matchchat/internal/chat"
	"go.uber.org/zap"
)

// TempIDPrefix marks client-generated message ids.
const TempIDPrefix = "tmp-"

// Sender is the API call that creates a message server-side.
type Sender interface {
	SendMessage(ctx context.Context, conversationID string, req chat.SendRequest) (chat.Message, error)
}

// Uploader uploads a staged attachment exactly once.
type Uploader interface {
	Upload(ctx context.Context, att chat.PendingAttachment) (chat.AttachmentRef, error)
}

// Thread is the part of the thread store the queue drives.
type Thread interface {
	AppendOptimistic(m chat.Message) (chat.Message, error)
	ConfirmOptimistic(tempID string, confirmed chat.Message) (chat.Message, error)
	FailOptimistic(tempID string, kind chat.ErrorKind) (chat.Message, error)
	Retrying(tempID string) (chat.Message, error)
	Lookup(id string) (chat.Message, bool)
}

// List receives previews of outgoing messages.
type List interface {
	ApplyOutgoing(conversationID string, m chat.Message)
}

// Journal persists unresolved outgoing messages so they survive a restart.
type Journal interface {
	SaveOutgoing(m chat.Message) error
	DeleteOutgoing(tempID string) error
}

// Deps are the collaborators of a Queue. Journal, Bus, Logger and Clock are optional.
type Deps struct {
	Sender   Sender
	Uploader Uploader
	Thread   Thread
	List     List
	Journal  Journal
	SelfID   string
	Bus      *bus.Bus
	Logger   *zap.Logger
	Clock    clockwork.Clock
}

// Queue is the optimistic send queue.
type Queue struct {
	sender   Sender
	uploader Uploader
	thread   Thread
	list     List
	journal  Journal
	selfID   string
	bus      *bus.Bus
	logger   *zap.Logger
	clock    clockwork.Clock

	mu       sync.Mutex
	inflight map[string]struct{}
	// uploaded keeps attachment references of messages whose send failed after
	// the upload succeeded, so a retry does not upload again.
	uploaded map[string]chat.AttachmentRef
}

// NewQueue creates a send queue.
func NewQueue(d Deps) *Queue {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &Queue{
		sender:   d.Sender,
		uploader: d.Uploader,
		thread:   d.Thread,
		list:     d.List,
		journal:  d.Journal,
		selfID:   d.SelfID,
		bus:      d.Bus,
		logger:   d.Logger,
		clock:    d.Clock,
		inflight: make(map[string]struct{}),
		uploaded: make(map[string]chat.AttachmentRef),
	}
}

// Enqueue validates the message and shows it as pending at the newest position of
// its thread. Nothing is sent yet.
func (q *Queue) Enqueue(conversationID, content string, att *chat.PendingAttachment) (chat.Message, error) {
	if err := chat.ValidateSend(content, att); err != nil {
		return chat.Message{}, err
	}
	if att != nil {
		if err := chat.ValidateAttachment(*att); err != nil {
			return chat.Message{}, err
		}
	}

	tempID := TempIDPrefix + uuid.NewString()
	m := chat.Message{
		ID:             tempID,
		ClientID:       tempID,
		ConversationID: conversationID,
		SenderID:       q.selfID,
		Content:        content,
		Upload:         att,
		CreatedAt:      q.clock.Now(),
		State:          chat.Pending,
	}
	m, err := q.thread.AppendOptimistic(m)
	if err != nil {
		return chat.Message{}, fmt.Errorf("enqueue: %w", err)
	}
	q.list.ApplyOutgoing(conversationID, m)
	q.persist(m)

	q.logger.Debug("message queued", zap.String("conversation_id", conversationID), zap.String("temp_id", tempID))
	q.bus.Emit(bus.MessagePending, bus.MessageEvent{ConversationID: conversationID, TempID: tempID})
	return m, nil
}

// Send enqueues a message and delivers it. On delivery failure the returned message
// is the failed bubble and err carries the failure kind.
func (q *Queue) Send(ctx context.Context, conversationID, content string, att *chat.PendingAttachment) (chat.Message, error) {
	m, err := q.Enqueue(conversationID, content, att)
	if err != nil {
		return chat.Message{}, err
	}
	return q.Deliver(ctx, m.ID)
}

// Deliver uploads the attachment if any, then sends the pending message. A second
// call for a message already in flight returns ErrInFlight.
func (q *Queue) Deliver(ctx context.Context, tempID string) (chat.Message, error) {
	if !q.acquire(tempID) {
		return chat.Message{}, fmt.Errorf("deliver %s: %w", tempID, chat.ErrInFlight)
	}
	defer q.release(tempID)

	m, ok := q.thread.Lookup(tempID)
	if !ok {
		return chat.Message{}, fmt.Errorf("deliver %s: %w", tempID, chat.ErrUnknownMessage)
	}
	if m.State != chat.Pending {
		return chat.Message{}, fmt.Errorf("deliver %s: %w", tempID, chat.ErrNotRetryable)
	}
	return q.deliver(ctx, m)
}

// Retry moves a failed message back to pending and delivers it again with the same
// content and attachment.
func (q *Queue) Retry(ctx context.Context, tempID string) (chat.Message, error) {
	if !q.acquire(tempID) {
		return chat.Message{}, fmt.Errorf("retry %s: %w", tempID, chat.ErrInFlight)
	}
	defer q.release(tempID)

	if existing, ok := q.thread.Lookup(tempID); !ok {
		return chat.Message{}, fmt.Errorf("retry %s: %w", tempID, chat.ErrUnknownMessage)
	} else if existing.State != chat.Failed {
		return chat.Message{}, fmt.Errorf("retry %s: %w", tempID, chat.ErrNotRetryable)
	}

	m, err := q.thread.Retrying(tempID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("retry %s: %w", tempID, err)
	}
	q.persist(m)
	q.bus.Emit(bus.MessagePending, bus.MessageEvent{ConversationID: m.ConversationID, TempID: tempID})
	return q.deliver(ctx, m)
}

// Restore re-inserts journaled messages after a restart. Their delivery was
// interrupted, so they come back as failed and wait for a user retry.
func (q *Queue) Restore(msgs []chat.Message) {
	for _, m := range msgs {
		m.State = chat.Pending
		if _, err := q.thread.AppendOptimistic(m); err != nil {
			q.logger.Warn("failed to restore outgoing message", zap.String("temp_id", m.ID), zap.Error(err))
			continue
		}
		kind := m.FailedWith
		if kind == chat.KindNone {
			kind = chat.KindNetwork
		}
		if failed, err := q.thread.FailOptimistic(m.ID, kind); err == nil {
			q.persist(failed)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, m chat.Message) (chat.Message, error) {
	log := q.logger.With(zap.String("conversation_id", m.ConversationID), zap.String("temp_id", m.ID))

	req := chat.SendRequest{ClientID: m.ID, Content: m.Content, Attachment: m.Attachment}
	if m.Upload != nil {
		ref, ok := q.uploadedRef(m.ID)
		if !ok {
			var err error
			ref, err = q.uploader.Upload(ctx, *m.Upload)
			if err != nil {
				log.Warn("attachment upload failed", zap.Error(err))
				return q.fail(m, err)
			}
			q.mu.Lock()
			q.uploaded[m.ID] = ref
			q.mu.Unlock()
		}
		req.Attachment = &ref
	}

	sent, err := q.sender.SendMessage(ctx, m.ConversationID, req)
	if err != nil {
		log.Warn("failed to send message", zap.Error(err))
		return q.fail(m, err)
	}

	confirmed, err := q.thread.ConfirmOptimistic(m.ID, sent)
	if err != nil {
		return chat.Message{}, fmt.Errorf("confirm %s: %w", m.ID, err)
	}
	q.mu.Lock()
	delete(q.uploaded, m.ID)
	q.mu.Unlock()
	q.list.ApplyOutgoing(m.ConversationID, confirmed)
	if q.journal != nil {
		if err := q.journal.DeleteOutgoing(m.ID); err != nil {
			log.Error("failed to drop outbox entry", zap.Error(err))
		}
	}

	log.Info("message sent", zap.String("server_msg_id", confirmed.ID))
	q.bus.Emit(bus.MessageSendAck, bus.MessageEvent{
		ConversationID: m.ConversationID,
		TempID:         m.ID,
		MessageID:      confirmed.ID,
	})
	return confirmed, nil
}

// fail marks the bubble failed. Auth failures are shown as retryable on the bubble
// and returned as AuthError so the session layer can react.
func (q *Queue) fail(m chat.Message, cause error) (chat.Message, error) {
	kind := chat.KindOf(cause)
	bubble := kind
	if kind == chat.KindAuth {
		bubble = chat.KindNetwork
	}

	failed, err := q.thread.FailOptimistic(m.ID, bubble)
	if err != nil {
		return chat.Message{}, errors.Join(cause, err)
	}
	q.persist(failed)
	q.bus.Emit(bus.MessageSendFailed, bus.MessageEvent{
		ConversationID: m.ConversationID,
		TempID:         m.ID,
		Error:          cause.Error(),
	})

	var ce *chat.Error
	if errors.As(cause, &ce) {
		return failed, cause
	}
	return failed, chat.E(kind, "send", cause)
}

func (q *Queue) uploadedRef(tempID string) (chat.AttachmentRef, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ref, ok := q.uploaded[tempID]
	return ref, ok
}

func (q *Queue) persist(m chat.Message) {
	if q.journal == nil {
		return
	}
	if err := q.journal.SaveOutgoing(m); err != nil {
		q.logger.Error("failed to persist outbox entry", zap.String("temp_id", m.ID), zap.Error(err))
	}
}

func (q *Queue) acquire(tempID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, busy := q.inflight[tempID]; busy {
		return false
	}
	q.inflight[tempID] = struct{}{}
	return true
}

func (q *Queue) release(tempID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, tempID)
}
