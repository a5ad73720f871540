package api

import (
	"errors"
	"time"

	"github.com/matheus3301/matchchat/internal/chat"
)

type participantJSON struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Online      bool   `json:"online"`
}

type previewJSON struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationJSON struct {
	ID          string          `json:"id"`
	Participant participantJSON `json:"participant"`
	LastMessage *previewJSON    `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

type attachmentJSON struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}

type messageJSON struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id,omitempty"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	Content        string          `json:"content,omitempty"`
	Attachment     *attachmentJSON `json:"attachment,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Read           bool            `json:"read"`
}

type sendRequestJSON struct {
	ClientID   string          `json:"client_id"`
	Content    string          `json:"content,omitempty"`
	Attachment *attachmentJSON `json:"attachment,omitempty"`
}

type markReadJSON struct {
	MessageIDs []string `json:"message_ids"`
}

func (w conversationJSON) toChat() (chat.Conversation, error) {
	if w.ID == "" {
		return chat.Conversation{}, errors.New("conversation without id")
	}
	if w.Participant.ID == "" {
		return chat.Conversation{}, errors.New("conversation " + w.ID + " without participant")
	}
	c := chat.Conversation{
		ID: w.ID,
		Other: chat.Participant{
			ID:          w.Participant.ID,
			DisplayName: w.Participant.DisplayName,
			AvatarURL:   w.Participant.AvatarURL,
			Online:      w.Participant.Online,
		},
		UnreadCount: max(w.UnreadCount, 0),
		CreatedAt:   w.CreatedAt,
	}
	if p := w.LastMessage; p != nil {
		if p.ID == "" || p.CreatedAt.IsZero() {
			return chat.Conversation{}, errors.New("conversation " + w.ID + " has an incomplete last message")
		}
		c.LastMessage = &chat.Preview{
			MessageID: p.ID,
			Content:   p.Content,
			SenderID:  p.SenderID,
			CreatedAt: p.CreatedAt,
		}
	}
	return c, nil
}

func (w messageJSON) toChat(conversationID string) (chat.Message, error) {
	switch {
	case w.ID == "":
		return chat.Message{}, errors.New("message without id")
	case w.CreatedAt.IsZero():
		return chat.Message{}, errors.New("message " + w.ID + " without created_at")
	case w.SenderID == "":
		return chat.Message{}, errors.New("message " + w.ID + " without sender")
	case w.ConversationID != "" && w.ConversationID != conversationID:
		return chat.Message{}, errors.New("message " + w.ID + " belongs to another conversation")
	}
	m := chat.Message{
		ID:             w.ID,
		ClientID:       w.ClientID,
		ConversationID: conversationID,
		SenderID:       w.SenderID,
		Content:        w.Content,
		CreatedAt:      w.CreatedAt,
		Read:           w.Read,
		State:          chat.Sent,
	}
	if w.Attachment != nil {
		ref, err := w.Attachment.toChat()
		if err != nil {
			return chat.Message{}, err
		}
		m.Attachment = &ref
	}
	return m, nil
}

func (w attachmentJSON) toChat() (chat.AttachmentRef, error) {
	if w.URL == "" {
		return chat.AttachmentRef{}, errors.New("attachment without url")
	}
	return chat.AttachmentRef{URL: w.URL, MimeType: w.MimeType, Name: w.Name, Size: w.Size}, nil
}

func attachmentToJSON(ref *chat.AttachmentRef) *attachmentJSON {
	if ref == nil {
		return nil
	}
	return &attachmentJSON{URL: ref.URL, MimeType: ref.MimeType, Name: ref.Name, Size: ref.Size}
}
