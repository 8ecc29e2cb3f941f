package models

import "time"

// User represents a registered user. The ID is the externally issued
// phone number and never changes; the username is the display name and
// is unique across users.
type User struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"` // Never send password in JSON
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserRef is the (identity, display name) pair used in presence listings,
// friend lists and event payloads.
type UserRef struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
}

// FriendRequestRef identifies a pending incoming friend request by its sender.
type FriendRequestRef struct {
	SenderID       string `json:"senderId" db:"sender_id"`
	SenderUsername string `json:"senderUsername" db:"sender_username"`
}

// SocialSnapshot is the resolved social state sent to a client on request:
// its friends and its pending incoming friend requests.
type SocialSnapshot struct {
	Friends        []UserRef          `json:"friends"`
	FriendRequests []FriendRequestRef `json:"friendRequests"`
}

// Session is a login session backing the auth cookie.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Ref converts a User to its UserRef form.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}
