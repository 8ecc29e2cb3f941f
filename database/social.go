package database

import (
	"database/sql"
	"errors"

	"wavechat/models"
)

// ListFriends returns the resolved friend list for a user in edge-creation
// order. A friend whose user record is missing resolves to the "Unknown"
// display name rather than failing.
func (s *Store) ListFriends(userID string) ([]models.UserRef, error) {
	var friends []models.UserRef
	err := s.db.Select(&friends,
		`SELECT f.friend_id AS id, COALESCE(u.username, 'Unknown') AS username
		FROM friends f
		LEFT JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ?
		ORDER BY f.rowid`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return friends, nil
}

// ListFriendRequests returns the pending incoming requests for a user in
// arrival order, with sender display names resolved.
func (s *Store) ListFriendRequests(userID string) ([]models.FriendRequestRef, error) {
	var requests []models.FriendRequestRef
	err := s.db.Select(&requests,
		`SELECT r.sender_id, COALESCE(u.username, 'Unknown') AS sender_username
		FROM friend_requests r
		LEFT JOIN users u ON u.id = r.sender_id
		WHERE r.recipient_id = ?
		ORDER BY r.rowid`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// AreFriends reports whether a friend edge exists from a to b. Edges are
// stored symmetrically, so one direction is enough to answer.
func (s *Store) AreFriends(a, b string) (bool, error) {
	var one int
	err := s.db.Get(&one,
		"SELECT 1 FROM friends WHERE user_id = ? AND friend_id = ?", a, b)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasPendingRequest reports whether a pending request from sender to
// recipient exists.
func (s *Store) HasPendingRequest(senderID, recipientID string) (bool, error) {
	var one int
	err := s.db.Get(&one,
		"SELECT 1 FROM friend_requests WHERE sender_id = ? AND recipient_id = ?",
		senderID, recipientID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateFriendRequest records a pending request from sender to recipient.
func (s *Store) CreateFriendRequest(senderID, recipientID string) error {
	_, err := s.db.Exec(
		"INSERT INTO friend_requests (sender_id, recipient_id) VALUES (?, ?)",
		senderID, recipientID)
	return err
}

// DeleteFriendRequest removes the pending request from sender to recipient
// if present. Removing an absent request is a no-op.
func (s *Store) DeleteFriendRequest(senderID, recipientID string) error {
	_, err := s.db.Exec(
		"DELETE FROM friend_requests WHERE sender_id = ? AND recipient_id = ?",
		senderID, recipientID)
	return err
}

// AddFriendship creates the symmetric friend edge between a and b and
// clears any pending requests in either direction, all in one
// transaction, so a request can never be accepted twice and the edge can
// never exist in only one direction.
func (s *Store) AddFriendship(a, b string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO friends (user_id, friend_id) VALUES (?, ?), (?, ?)",
		a, b, b, a); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM friend_requests
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)`,
		a, b, b, a); err != nil {
		return err
	}

	return tx.Commit()
}
