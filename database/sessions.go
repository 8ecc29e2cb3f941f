package database

import (
	"time"

	"wavechat/models"
)

// CreateSession creates a new session for a user.
func (s *Store) CreateSession(sessionID, userID string, expiresAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		sessionID, userID, expiresAt)
	return err
}

// GetSession retrieves a session by its ID if it has not expired.
func (s *Store) GetSession(sessionID string) (*models.Session, error) {
	session := &models.Session{}
	err := s.db.Get(session,
		"SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ? AND expires_at > ?",
		sessionID, time.Now())
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(sessionID string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID)
	return err
}
