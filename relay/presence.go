package relay

import (
	"sync"

	"go.uber.org/zap"

	"wavechat/models"
)

// Conn is a live connection handle. Send queues an outbound event and
// reports whether the connection accepted it; a full or closed connection
// drops the event.
type Conn interface {
	Send(evt models.Event) bool
}

type presenceEntry struct {
	conn     Conn
	username string
}

// Registry tracks which users currently have a live connection. It is a
// cache of liveness only; identity and social data always come from the
// store. Exactly one entry exists per online user: registering an
// identity that is already online replaces the previous connection
// (last identify wins).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*presenceEntry
	order   []string
	log     *zap.Logger
}

// NewRegistry returns an empty presence registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*presenceEntry),
		log:     log,
	}
}

// Register associates a connection with a user identity, replacing any
// prior entry for that identity.
func (r *Registry) Register(userID, username string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[userID]; !ok {
		r.order = append(r.order, userID)
	}
	r.entries[userID] = &presenceEntry{conn: conn, username: username}
	r.log.Info("user online", zap.String("user", userID))
}

// Unregister removes the entry for userID, but only while it still points
// at conn: a disconnect arriving after the same identity re-registered on
// a newer connection must not knock that newer connection offline.
// Removing an absent entry is a no-op.
func (r *Registry) Unregister(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok || entry.conn != conn {
		return
	}
	delete(r.entries, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.log.Info("user offline", zap.String("user", userID))
}

// Lookup returns the connection for userID if online. Absence is a normal
// outcome, not an error; callers skip delivery when the second return is
// false.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// Online returns a snapshot of every online user in registration order.
func (r *Registry) Online() []models.UserRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]models.UserRef, 0, len(r.order))
	for _, id := range r.order {
		online = append(online, models.UserRef{ID: id, Username: r.entries[id].username})
	}
	return online
}
