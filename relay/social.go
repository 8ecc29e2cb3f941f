package relay

import (
	"go.uber.org/zap"

	"wavechat/database"
	"wavechat/models"
)

// Social validates and mutates friend and friend-request edges against
// the store, and notifies affected online users. Not-found and duplicate
// conditions are deliberate silent no-ops: social actions are best
// effort and no error channel back to the initiating client exists.
type Social struct {
	store    *database.Store
	registry *Registry
	log      *zap.Logger
}

// NewSocial returns a coordinator bound to the store and presence registry.
func NewSocial(store *database.Store, registry *Registry, log *zap.Logger) *Social {
	return &Social{store: store, registry: registry, log: log}
}

// SendRequest records a pending friend request from sender to recipient
// and notifies the recipient if online. Unknown recipient, self-request,
// existing friendship and duplicate pending request all leave state
// untouched. A crossed request (recipient already has a request pending
// toward the sender) resolves as an implicit accept instead of leaving
// two dangling mirrored requests.
func (s *Social) SendRequest(senderID, recipientID string) {
	if senderID == recipientID {
		return
	}

	exists, err := s.store.UserExists(recipientID)
	if err != nil {
		s.log.Error("friend request lookup failed", zap.Error(err))
		return
	}
	if !exists {
		s.log.Warn("friend request to unknown user",
			zap.String("sender", senderID), zap.String("recipient", recipientID))
		return
	}

	if friends, err := s.store.AreFriends(senderID, recipientID); err != nil || friends {
		if err != nil {
			s.log.Error("friend edge lookup failed", zap.Error(err))
		}
		return
	}
	if pending, err := s.store.HasPendingRequest(senderID, recipientID); err != nil || pending {
		if err != nil {
			s.log.Error("pending request lookup failed", zap.Error(err))
		}
		return
	}

	// Crossed requests: the recipient already asked first, so both sides
	// want the edge. Resolve it now instead of stacking a mirror request.
	if crossed, err := s.store.HasPendingRequest(recipientID, senderID); err != nil {
		s.log.Error("pending request lookup failed", zap.Error(err))
		return
	} else if crossed {
		s.befriend(senderID, recipientID)
		return
	}

	if err := s.store.CreateFriendRequest(senderID, recipientID); err != nil {
		s.log.Error("friend request persist failed", zap.Error(err))
		return
	}

	if conn, online := s.registry.Lookup(recipientID); online {
		conn.Send(models.NewEvent(models.EventFriendRequest, models.FriendRequestRef{
			SenderID:       senderID,
			SenderUsername: s.username(senderID),
		}))
	}
}

// Accept resolves a pending request from requesterID to userID into a
// symmetric friendship. A missing pending request makes this a no-op, so
// a request can never be accepted twice.
func (s *Social) Accept(userID, requesterID string) {
	pending, err := s.store.HasPendingRequest(requesterID, userID)
	if err != nil {
		s.log.Error("pending request lookup failed", zap.Error(err))
		return
	}
	if !pending {
		return
	}
	s.befriend(userID, requesterID)
}

// Decline removes a pending request from requesterID to userID. The
// requester is not notified; decline is silent by design.
func (s *Social) Decline(userID, requesterID string) {
	if err := s.store.DeleteFriendRequest(requesterID, userID); err != nil {
		s.log.Error("friend request delete failed", zap.Error(err))
	}
}

// Snapshot returns the resolved friend and pending-request lists for
// initial client population.
func (s *Social) Snapshot(userID string) models.SocialSnapshot {
	snapshot := models.SocialSnapshot{
		Friends:        []models.UserRef{},
		FriendRequests: []models.FriendRequestRef{},
	}

	friends, err := s.store.ListFriends(userID)
	if err != nil {
		s.log.Error("friend list load failed", zap.Error(err))
	} else if friends != nil {
		snapshot.Friends = friends
	}

	requests, err := s.store.ListFriendRequests(userID)
	if err != nil {
		s.log.Error("friend request list load failed", zap.Error(err))
	} else if requests != nil {
		snapshot.FriendRequests = requests
	}

	return snapshot
}

// befriend writes the symmetric edge, clears pending requests in both
// directions, and notifies each side that is online.
func (s *Social) befriend(a, b string) {
	if err := s.store.AddFriendship(a, b); err != nil {
		s.log.Error("friendship persist failed", zap.Error(err))
		return
	}

	if conn, online := s.registry.Lookup(a); online {
		conn.Send(models.NewEvent(models.EventFriendAccepted,
			models.UserRef{ID: b, Username: s.username(b)}))
	}
	if conn, online := s.registry.Lookup(b); online {
		conn.Send(models.NewEvent(models.EventFriendAccepted,
			models.UserRef{ID: a, Username: s.username(a)}))
	}
}

func (s *Social) username(userID string) string {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return "Unknown"
	}
	return user.Username
}
