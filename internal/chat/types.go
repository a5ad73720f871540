package chat

import "time"

// MaxAttachmentBytes is the upload ceiling for a single attachment.
const MaxAttachmentBytes = 10 * 1024 * 1024

// DeliveryState is the local delivery state of a message.
type DeliveryState string

const (
	Composing DeliveryState = "composing"
	Pending   DeliveryState = "pending"
	Sent      DeliveryState = "sent"
	Failed    DeliveryState = "failed"
)

// Participant is the other party of a conversation.
type Participant struct {
	ID          string
	DisplayName string
	AvatarURL   string
	Online      bool
}

// Preview summarizes the last message of a conversation.
type Preview struct {
	MessageID string
	Content   string
	SenderID  string
	CreatedAt time.Time
}

// Conversation is a two-party thread summary as shown in the conversation list.
type Conversation struct {
	ID          string
	Other       Participant
	LastMessage *Preview
	UnreadCount int
	CreatedAt   time.Time
}

// AttachmentRef points at an uploaded attachment.
type AttachmentRef struct {
	URL      string
	MimeType string
	Name     string
	Size     int64
}

// PendingAttachment is a staged local file that has not been uploaded yet.
type PendingAttachment struct {
	URI      string
	Name     string
	MimeType string
	Size     int64
}

// Message is a single entry of a conversation thread. While pending, ID holds the
// client-generated temporary id; ClientID keeps that id after confirmation.
type Message struct {
	ID             string
	ClientID       string
	ConversationID string
	SenderID       string
	Content        string
	Attachment     *AttachmentRef
	// Upload is the staged file of an outgoing message whose attachment has not
	// been uploaded yet.
	Upload    *PendingAttachment
	CreatedAt time.Time
	Read      bool
	State     DeliveryState
	// FailedWith is the kind of the last delivery failure.
	FailedWith ErrorKind
}

// Local reports whether the message exists only on this device.
func (m Message) Local() bool {
	return m.State == Pending || m.State == Failed
}

// PreviewOf builds the conversation preview for m.
func PreviewOf(m Message) *Preview {
	content := m.Content
	if content == "" && m.Attachment != nil {
		content = m.Attachment.Name
	}
	if content == "" && m.Upload != nil {
		content = m.Upload.Name
	}
	return &Preview{
		MessageID: m.ID,
		Content:   content,
		SenderID:  m.SenderID,
		CreatedAt: m.CreatedAt,
	}
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	if m.Attachment != nil {
		a := *m.Attachment
		m.Attachment = &a
	}
	if m.Upload != nil {
		u := *m.Upload
		m.Upload = &u
	}
	return m
}

// Clone returns a deep copy of c.
func (c Conversation) Clone() Conversation {
	if c.LastMessage != nil {
		p := *c.LastMessage
		c.LastMessage = &p
	}
	return c
}

// SendRequest is the payload of a message send.
type SendRequest struct {
	ClientID   string
	Content    string
	Attachment *AttachmentRef
}
