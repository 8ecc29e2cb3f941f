package relay

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"wavechat/database"
	"wavechat/models"
)

// Session is the per-connection relay state: the outbound handle plus the
// identity bound by the identify event. Every relay operation except
// identify is a no-op while the session is unbound. userID and closed are
// guarded by the relay's dispatch lock.
type Session struct {
	conn   Conn
	userID string
	closed bool
}

type handlerFunc func(*Session, json.RawMessage)

// Relay maps inbound client events onto the presence registry, the social
// coordinator and the conversation router, and pushes results back to one
// connection (targeted) or all connections (broadcast).
//
// Event processing is serialized relay-wide: one event, including its
// synchronous persistence write, finishes before the next starts. That
// makes every store mutation a clean read-modify-write without per-entity
// locking. A failing handler only loses its own event; dispatch isolates
// each event so the relay keeps serving.
type Relay struct {
	store    *database.Store
	registry *Registry
	social   *Social
	router   *Router
	log      *zap.Logger

	dispatchMu sync.Mutex
	handlers   map[string]handlerFunc

	sessionsMu sync.RWMutex
	sessions   map[*Session]bool
}

// New wires a relay over the given store.
func New(store *database.Store, log *zap.Logger) *Relay {
	registry := NewRegistry(log)
	r := &Relay{
		store:    store,
		registry: registry,
		social:   NewSocial(store, registry, log),
		router:   NewRouter(store, registry, log),
		log:      log,
		sessions: make(map[*Session]bool),
	}
	r.handlers = map[string]handlerFunc{
		models.EventIdentify:       r.handleIdentify,
		models.EventSocialSnapshot: r.handleSocialSnapshot,
		models.EventFriendRequest:  r.handleFriendRequest,
		models.EventFriendAccept:   r.handleFriendAccept,
		models.EventFriendDecline:  r.handleFriendDecline,
		models.EventChatMessage:    r.handleChatMessage,
		models.EventHistory:        r.handleHistory,
		models.EventOnlineUsers:    r.handleOnlineUsers,
	}
	return r
}

// Registry exposes the presence registry, primarily for transport wiring
// and tests.
func (r *Relay) Registry() *Registry { return r.registry }

// Connect registers a new connection with the relay. The session starts
// unbound; identity arrives with the identify event.
func (r *Relay) Connect(conn Conn) *Session {
	sess := &Session{conn: conn}
	r.sessionsMu.Lock()
	r.sessions[sess] = true
	r.sessionsMu.Unlock()
	return sess
}

// Disconnect handles a connection drop: the terminal event for a session.
// If the session was bound, its presence entry is removed (unless a newer
// connection already replaced it) and presence is re-broadcast. The
// session's bound identity must be read under the dispatch lock: the drop
// can race an in-flight identify for the same session, and marking the
// session closed there keeps a late identify from registering a dead
// connection.
func (r *Relay) Disconnect(sess *Session) {
	r.sessionsMu.Lock()
	delete(r.sessions, sess)
	r.sessionsMu.Unlock()

	r.dispatchMu.Lock()
	sess.closed = true
	userID := sess.userID
	r.dispatchMu.Unlock()

	if userID != "" {
		r.registry.Unregister(userID, sess.conn)
		r.broadcastOnline()
	}
}

// Dispatch routes one inbound event to its handler. Unknown event types
// are ignored; a malformed payload or panicking handler aborts only that
// event.
func (r *Relay) Dispatch(sess *Session, evt models.Event) {
	handler, ok := r.handlers[evt.Type]
	if !ok {
		r.log.Debug("unknown event type", zap.String("type", evt.Type))
		return
	}

	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("event handler panic",
				zap.String("type", evt.Type), zap.Any("panic", rec))
		}
	}()

	// Events racing a connection drop lose; the drop is terminal.
	if sess.closed {
		return
	}

	handler(sess, evt.Payload)
}

func (r *Relay) handleIdentify(sess *Session, payload json.RawMessage) {
	var userID string
	if err := json.Unmarshal(payload, &userID); err != nil || userID == "" {
		r.log.Warn("malformed identify payload", zap.Error(err))
		return
	}

	user, err := r.store.GetUserByID(userID)
	if err != nil {
		r.log.Warn("identify for unknown user", zap.String("user", userID))
		return
	}

	sess.userID = user.ID
	r.registry.Register(user.ID, user.Username, sess.conn)
	r.broadcastOnline()
}

func (r *Relay) handleSocialSnapshot(sess *Session, payload json.RawMessage) {
	if sess.userID == "" {
		return
	}
	var userID string
	if err := json.Unmarshal(payload, &userID); err != nil || userID == "" {
		r.log.Warn("malformed snapshot payload", zap.Error(err))
		return
	}
	sess.conn.Send(models.NewEvent(models.EventSocialSnapshot, r.social.Snapshot(userID)))
}

func (r *Relay) handleFriendRequest(sess *Session, payload json.RawMessage) {
	if sess.userID == "" {
		return
	}
	var req models.FriendRequestPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.SenderID == "" || req.RecipientID == "" {
		r.log.Warn("malformed friend request payload", zap.Error(err))
		return
	}
	r.social.SendRequest(req.SenderID, req.RecipientID)
}

func (r *Relay) handleFriendAccept(sess *Session, payload json.RawMessage) {
	if sess.userID == "" {
		return
	}
	var decision models.FriendDecision
	if err := json.Unmarshal(payload, &decision); err != nil || decision.UserID == "" || decision.RequesterID == "" {
		r.log.Warn("malformed friend accept payload", zap.Error(err))
		return
	}
	r.social.Accept(decision.UserID, decision.RequesterID)
}

func (r *Relay) handleFriendDecline(sess *Session, payload json.RawMessage) {
	if sess.userID == "" {
		return
	}
	var decision models.FriendDecision
	if err := json.Unmarshal(payload, &decision); err != nil || decision.UserID == "" || decision.RequesterID == "" {
		r.log.Warn("malformed friend decline payload", zap.Error(err))
		return
	}
	r.social.Decline(decision.UserID, decision.RequesterID)
}

func (r *Relay) handleChatMessage(sess *Session, payload json.RawMessage) {
	if sess.userID == "" {
		return
	}
	var msg models.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Sender == "" || msg.Receiver == "" {
		r.log.Warn("malformed chat message payload", zap.Error(err))
		return
	}
	r.router.Deliver(msg)
}

func (r *Relay) handleHistory(sess *Session, payload json.RawMessage) {
	if sess.userID == "" {
		return
	}
	var req models.HistoryRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Sender == "" || req.Receiver == "" {
		r.log.Warn("malformed history payload", zap.Error(err))
		return
	}
	sess.conn.Send(models.NewEvent(models.EventHistory, r.router.History(req.Sender, req.Receiver)))
}

func (r *Relay) handleOnlineUsers(sess *Session, _ json.RawMessage) {
	if sess.userID == "" {
		return
	}
	r.broadcastOnline()
}

// broadcastOnline pushes the current presence snapshot to every connected
// socket, identified or not.
func (r *Relay) broadcastOnline() {
	evt := models.NewEvent(models.EventOnlineUsers, r.registry.Online())

	r.sessionsMu.RLock()
	defer r.sessionsMu.RUnlock()
	for sess := range r.sessions {
		sess.conn.Send(evt)
	}
}
