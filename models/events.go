package models

import "encoding/json"

// Event is the wire envelope for all realtime traffic in both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event types.
const (
	EventIdentify       = "identify"
	EventSocialSnapshot = "social_snapshot"
	EventFriendRequest  = "friend_request"
	EventFriendAccept   = "friend_accept"
	EventFriendDecline  = "friend_decline"
	EventChatMessage    = "chat_message"
	EventHistory        = "history"
	EventOnlineUsers    = "online_users"
)

// Outbound-only event types.
const (
	EventFriendAccepted = "friend_accepted"
)

// NewEvent marshals payload into an Event envelope. A payload that cannot
// be marshaled yields an envelope with an empty payload; every payload
// type we emit is a plain struct or slice, so that path is unreachable in
// practice.
func NewEvent(eventType string, payload interface{}) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{Type: eventType}
	}
	return Event{Type: eventType, Payload: raw}
}

// FriendRequestPayload is the inbound payload for sending a friend request.
type FriendRequestPayload struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
}

// FriendDecision is the inbound payload for accepting or declining a
// pending friend request.
type FriendDecision struct {
	UserID      string `json:"userId"`
	RequesterID string `json:"requesterId"`
}
