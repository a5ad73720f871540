package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/matchchat/internal/chat"
)

// ReplaceConversations replaces the cached conversation list with convs.
func (db *DB) ReplaceConversations(convs []chat.Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, c := range convs {
		var p chat.Preview
		if c.LastMessage != nil {
			p = *c.LastMessage
		}
		if _, err := tx.Exec(`
			INSERT INTO conversations (id, participant_id, display_name, avatar_url, online,
				last_message_id, last_message_content, last_message_sender, last_message_at,
				unread_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Other.ID, c.Other.DisplayName, c.Other.AvatarURL, c.Other.Online,
			p.MessageID, p.Content, p.SenderID, toMillis(p.CreatedAt),
			c.UnreadCount, toMillis(c.CreatedAt), now); err != nil {
			return fmt.Errorf("insert conversation %q: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListConversations returns the cached conversation list, most recent first.
func (db *DB) ListConversations() ([]chat.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, participant_id, display_name, avatar_url, online,
			last_message_id, last_message_content, last_message_sender, last_message_at,
			unread_count, created_at
		FROM conversations
		ORDER BY last_message_at DESC, created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []chat.Conversation
	for rows.Next() {
		var (
			c                 chat.Conversation
			p                 chat.Preview
			lastAt, createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.Other.ID, &c.Other.DisplayName, &c.Other.AvatarURL, &c.Other.Online,
			&p.MessageID, &p.Content, &p.SenderID, &lastAt,
			&c.UnreadCount, &createdAt); err != nil {
			return nil, err
		}
		if p.MessageID != "" {
			p.CreatedAt = fromMillis(lastAt)
			c.LastMessage = &p
		}
		c.CreatedAt = fromMillis(createdAt)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
