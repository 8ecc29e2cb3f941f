package relay

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wavechat/database"
	"wavechat/models"
)

// Router persists chat messages and delivers them to the receiving
// connection when the receiver is online.
type Router struct {
	store    *database.Store
	registry *Registry
	log      *zap.Logger
}

// NewRouter returns a conversation router bound to the store and registry.
func NewRouter(store *database.Store, registry *Registry, log *zap.Logger) *Router {
	return &Router{store: store, registry: registry, log: log}
}

// ConversationKey is the canonical key for the conversation between a and
// b: the two identities sorted lexicographically and joined, so both
// participants resolve to the same conversation no matter who initiated.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, "-")
}

// Deliver appends msg to its conversation and, once the write is durable,
// forwards it to the receiver's connection if one is registered. An
// offline receiver is normal: the message stays in history and no
// delivery fires. The sender renders its own message optimistically, so
// no echo is sent. Message text is stored as-is; content validation is
// the caller's concern.
func (r *Router) Deliver(msg models.ChatMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	key := ConversationKey(msg.Sender, msg.Receiver)
	if err := r.store.AppendMessage(key, msg); err != nil {
		// The message is lost but the relay keeps serving; see the
		// persistence-failure policy in DESIGN.md.
		r.log.Error("message persist failed",
			zap.String("conversation", key), zap.Error(err))
		return
	}

	if conn, online := r.registry.Lookup(msg.Receiver); online {
		conn.Send(models.NewEvent(models.EventChatMessage, msg))
	}
}

// History returns the conversation between a and b in append order. An
// unknown conversation yields an empty slice.
func (r *Router) History(a, b string) []models.ChatMessage {
	messages, err := r.store.History(ConversationKey(a, b))
	if err != nil {
		r.log.Error("history load failed", zap.Error(err))
		return []models.ChatMessage{}
	}
	return messages
}
