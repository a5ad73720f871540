// Package chattest provides an in-memory API collaborator for tests.
package chattest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/matchchat/internal/chat"
)

// Operation names used to inject failures and count calls.
const (
	OpList     = "list"
	OpMessages = "messages"
	OpSend     = "send"
	OpMarkRead = "mark_read"
	OpUpload   = "upload"
)

// MarkReadCall records one mark-read request.
type MarkReadCall struct {
	ConversationID string
	MessageIDs     []string
}

// FakeAPI is a goroutine-safe fake of the REST collaborator. Sent messages are
// stored server-side so later fetches return them.
type FakeAPI struct {
	SelfID string
	// Base is the timestamp assigned to the first server-created message.
	Base time.Time

	mu            sync.Mutex
	conversations []chat.Conversation
	messages      map[string][]chat.Message
	errs          map[string]error
	calls         map[string]int
	sent          []chat.SendRequest
	markReads     []MarkReadCall
	uploads       []chat.PendingAttachment
	gate          chan struct{}
	nextID        int
}

// NewFakeAPI creates a fake whose own user is selfID.
func NewFakeAPI(selfID string) *FakeAPI {
	return &FakeAPI{
		SelfID:   selfID,
		Base:     time.Unix(1_700_000_000, 0).UTC(),
		messages: make(map[string][]chat.Message),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
		nextID:   1000,
	}
}

// SetConversations replaces the server-side conversation list.
func (f *FakeAPI) SetConversations(convs ...chat.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = slices.Clone(convs)
}

// SetMessages replaces the server-side thread of a conversation.
func (f *FakeAPI) SetMessages(conversationID string, msgs ...chat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[conversationID] = slices.Clone(msgs)
}

// Fail makes every later call of op return err; a nil err clears the failure.
func (f *FakeAPI) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Hold makes SendMessage block until Release is called.
func (f *FakeAPI) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Release unblocks held sends.
func (f *FakeAPI) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Calls returns how many times op was invoked.
func (f *FakeAPI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Sent returns the recorded send requests.
func (f *FakeAPI) Sent() []chat.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent)
}

// MarkReads returns the recorded mark-read requests.
func (f *FakeAPI) MarkReads() []MarkReadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.markReads)
}

// Uploads returns the recorded uploads.
func (f *FakeAPI) Uploads() []chat.PendingAttachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.uploads)
}

func (f *FakeAPI) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}

func (f *FakeAPI) ListConversations(ctx context.Context, _ bool) ([]chat.Conversation, error) {
	if err := f.enter(OpList); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, chat.E(chat.KindNetwork, "list conversations", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chat.Conversation, len(f.conversations))
	for i, c := range f.conversations {
		out[i] = c.Clone()
	}
	return out, nil
}

func (f *FakeAPI) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	if err := f.enter(OpMessages); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, chat.E(chat.KindNetwork, "list messages", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chat.Message, len(f.messages[conversationID]))
	for i, m := range f.messages[conversationID] {
		out[i] = m.Clone()
	}
	return out, nil
}

func (f *FakeAPI) SendMessage(ctx context.Context, conversationID string, req chat.SendRequest) (chat.Message, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return chat.Message{}, chat.E(chat.KindNetwork, "send message", ctx.Err())
		}
	}

	if err := f.enter(OpSend); err != nil {
		return chat.Message{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	f.nextID++
	msg := chat.Message{
		ID:             strconv.Itoa(f.nextID),
		ClientID:       req.ClientID,
		ConversationID: conversationID,
		SenderID:       f.SelfID,
		Content:        req.Content,
		Attachment:     req.Attachment,
		CreatedAt:      f.Base.Add(time.Duration(f.nextID) * time.Second),
		State:          chat.Sent,
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return msg.Clone(), nil
}

func (f *FakeAPI) MarkRead(_ context.Context, conversationID string, ids []string) error {
	if err := f.enter(OpMarkRead); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads = append(f.markReads, MarkReadCall{ConversationID: conversationID, MessageIDs: slices.Clone(ids)})
	for i, m := range f.messages[conversationID] {
		if slices.Contains(ids, m.ID) {
			f.messages[conversationID][i].Read = true
		}
	}
	for i, c := range f.conversations {
		if c.ID == conversationID {
			f.conversations[i].UnreadCount = 0
		}
	}
	return nil
}

func (f *FakeAPI) UploadAttachment(_ context.Context, att chat.PendingAttachment) (chat.AttachmentRef, error) {
	if err := f.enter(OpUpload); err != nil {
		return chat.AttachmentRef{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, att)
	return chat.AttachmentRef{
		URL:      fmt.Sprintf("https://cdn.test/%d/%s", len(f.uploads), att.Name),
		MimeType: att.MimeType,
		Name:     att.Name,
		Size:     att.Size,
	}, nil
}

// Msg builds a sent message for fixtures; at is seconds after Base.
func (f *FakeAPI) Msg(conversationID, id, senderID string, at int, content string) chat.Message {
	return chat.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      f.Base.Add(time.Duration(at) * time.Second),
		State:          chat.Sent,
	}
}
