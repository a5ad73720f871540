package conversations

import (
	"slices"
	"strings"

	"github.com/matheus3301/matchchat/internal/chat"
)

// sortConversations orders conversations by their last message, most recent first.
// Conversations without messages go last, earliest created first.
func sortConversations(convs []chat.Conversation) {
	slices.SortStableFunc(convs, func(a, b chat.Conversation) int {
		switch {
		case a.LastMessage != nil && b.LastMessage != nil:
			if c := b.LastMessage.CreatedAt.Compare(a.LastMessage.CreatedAt); c != 0 {
				return c
			}
			if c := chat.CompareIDs(b.LastMessage.MessageID, a.LastMessage.MessageID); c != 0 {
				return c
			}
		case a.LastMessage != nil:
			return -1
		case b.LastMessage != nil:
			return 1
		default:
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
		}
		return chat.CompareIDs(a.ID, b.ID)
	})
}

// Filter returns the conversations whose participant name or preview contains
// query, case-insensitively. An empty query returns convs unchanged.
func Filter(convs []chat.Conversation, query string) []chat.Conversation {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return convs
	}
	var out []chat.Conversation
	for _, c := range convs {
		if strings.Contains(strings.ToLower(c.Other.DisplayName), q) ||
			(c.LastMessage != nil && strings.Contains(strings.ToLower(c.LastMessage.Content), q)) {
			out = append(out, c)
		}
	}
	return out
}
