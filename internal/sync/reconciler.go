package sync

import (
	"time"

	"github.com/matheus3301/matchchat/internal/chat"
	"go.uber.org/zap"
)

// Cache is the local snapshot storage.
type Cache interface {
	ReplaceConversations(convs []chat.Conversation) error
	ListConversations() ([]chat.Conversation, error)
	ReplaceThread(conversationID string, msgs []chat.Message) error
	ListThread(conversationID string) ([]chat.Message, error)
	ThreadIDs() ([]string, error)
	ListOutgoing() ([]chat.Message, error)
	SetSyncState(key, value string) error
	SyncState(key string) (string, bool, error)
}

// Snapshot is the cached state loaded at startup.
type Snapshot struct {
	Conversations []chat.Conversation
	Threads       map[string][]chat.Message
	Outgoing      []chat.Message
}

// Reconciler persists refreshed snapshots and sync checkpoints. A nil cache turns
// every call into a no-op.
type Reconciler struct {
	cache  Cache
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(cache Cache, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{cache: cache, logger: logger}
}

// Load reads the cached snapshot.
func (r *Reconciler) Load() (Snapshot, error) {
	snap := Snapshot{Threads: make(map[string][]chat.Message)}
	if r.cache == nil {
		return snap, nil
	}

	convs, err := r.cache.ListConversations()
	if err != nil {
		return snap, err
	}
	snap.Conversations = convs

	ids, err := r.cache.ThreadIDs()
	if err != nil {
		return snap, err
	}
	for _, id := range ids {
		msgs, err := r.cache.ListThread(id)
		if err != nil {
			return snap, err
		}
		snap.Threads[id] = msgs
	}

	snap.Outgoing, err = r.cache.ListOutgoing()
	return snap, err
}

// SaveList persists the conversation list and its checkpoint.
func (r *Reconciler) SaveList(convs []chat.Conversation) {
	if r.cache == nil {
		return
	}
	if err := r.cache.ReplaceConversations(convs); err != nil {
		r.logger.Warn("failed to cache conversations", zap.Error(err))
		return
	}
	r.updateCheckpoint(listCheckpoint)
}

// SaveThread persists a thread and its checkpoint.
func (r *Reconciler) SaveThread(conversationID string, msgs []chat.Message) {
	if r.cache == nil {
		return
	}
	if err := r.cache.ReplaceThread(conversationID, msgs); err != nil {
		r.logger.Warn("failed to cache thread", zap.String("conversation_id", conversationID), zap.Error(err))
		return
	}
	r.updateCheckpoint(threadCheckpoint(conversationID))
}

// Checkpoint returns when a key was last synced with the server.
func (r *Reconciler) Checkpoint(key string) (time.Time, bool) {
	if r.cache == nil {
		return time.Time{}, false
	}
	value, ok, err := r.cache.SyncState(key)
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r *Reconciler) updateCheckpoint(key string) {
	if err := r.cache.SetSyncState(key, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		r.logger.Warn("failed to update checkpoint", zap.String("key", key), zap.Error(err))
	}
}

const listCheckpoint = "conversations.synced_at"

func threadCheckpoint(conversationID string) string {
	return "thread." + conversationID + ".synced_at"
}
