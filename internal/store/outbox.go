package store

import (
	"time"

	"github.com/matheus3301/matchchat/internal/chat"
)

// SaveOutgoing inserts or updates an unresolved outgoing message.
func (db *DB) SaveOutgoing(m chat.Message) error {
	now := time.Now().UnixMilli()
	var u chat.PendingAttachment
	if m.Upload != nil {
		u = *m.Upload
	}
	_, err := db.Exec(`
		INSERT INTO outbox (temp_id, conversation_id, sender_id, content,
			upload_uri, upload_name, upload_mime, upload_size, state, failed_with, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(temp_id) DO UPDATE SET
			state = excluded.state,
			failed_with = excluded.failed_with,
			updated_at = excluded.updated_at`,
		m.ID, m.ConversationID, m.SenderID, m.Content,
		u.URI, u.Name, u.MimeType, u.Size, string(m.State), string(m.FailedWith), toMillis(m.CreatedAt), now)
	return err
}

// DeleteOutgoing removes an outgoing message once the server confirmed it.
func (db *DB) DeleteOutgoing(tempID string) error {
	_, err := db.Exec(`DELETE FROM outbox WHERE temp_id = ?`, tempID)
	return err
}

// ListOutgoing returns every unresolved outgoing message, oldest first.
func (db *DB) ListOutgoing() ([]chat.Message, error) {
	rows, err := db.Query(`
		SELECT temp_id, conversation_id, sender_id, content,
			upload_uri, upload_name, upload_mime, upload_size, state, failed_with, created_at
		FROM outbox ORDER BY created_at ASC, temp_id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	for rows.Next() {
		var (
			m          chat.Message
			u          chat.PendingAttachment
			state      string
			failedWith string
			createdAt  int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content,
			&u.URI, &u.Name, &u.MimeType, &u.Size, &state, &failedWith, &createdAt); err != nil {
			return nil, err
		}
		m.ClientID = m.ID
		m.State = chat.DeliveryState(state)
		m.FailedWith = chat.ErrorKind(failedWith)
		m.CreatedAt = fromMillis(createdAt)
		if u.URI != "" {
			m.Upload = &u
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
