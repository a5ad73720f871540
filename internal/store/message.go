package store

import (
	"fmt"

	"github.com/matheus3301/matchchat/internal/chat"
)

// ReplaceThread replaces the cached server-sourced messages of a conversation.
// Local-only messages are skipped; they live in the outbox table.
func (db *DB) ReplaceThread(conversationID string, msgs []chat.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear thread %q: %w", conversationID, err)
	}
	for _, m := range msgs {
		if m.Local() {
			continue
		}
		var a chat.AttachmentRef
		if m.Attachment != nil {
			a = *m.Attachment
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (conversation_id, id, client_id, sender_id, content,
				attachment_url, attachment_mime, attachment_name, attachment_size, created_at, read)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, id) DO UPDATE SET
				content = excluded.content,
				read = MAX(messages.read, excluded.read)`,
			conversationID, m.ID, m.ClientID, m.SenderID, m.Content,
			a.URL, a.MimeType, a.Name, a.Size, toMillis(m.CreatedAt), m.Read); err != nil {
			return fmt.Errorf("insert message %q: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// ListThread returns the cached messages of a conversation in thread order.
func (db *DB) ListThread(conversationID string) ([]chat.Message, error) {
	rows, err := db.Query(`
		SELECT id, client_id, sender_id, content,
			attachment_url, attachment_mime, attachment_name, attachment_size, created_at, read
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	for rows.Next() {
		var (
			m         chat.Message
			a         chat.AttachmentRef
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.ClientID, &m.SenderID, &m.Content,
			&a.URL, &a.MimeType, &a.Name, &a.Size, &createdAt, &m.Read); err != nil {
			return nil, err
		}
		m.ConversationID = conversationID
		m.CreatedAt = fromMillis(createdAt)
		m.State = chat.Sent
		if a.URL != "" {
			m.Attachment = &a
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	chat.SortMessages(msgs)
	return msgs, nil
}

// ThreadIDs returns the conversations that have a cached thread.
func (db *DB) ThreadIDs() ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT conversation_id FROM messages ORDER BY conversation_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
