package database

import (
	"database/sql"
	"errors"

	"wavechat/models"
)

// CreateUser inserts a new user keyed by its phone-number identity.
func (s *Store) CreateUser(id, username, password string) (*models.User, error) {
	_, err := s.db.Exec(
		"INSERT INTO users (id, username, password) VALUES (?, ?, ?)",
		id, username, password,
	)
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(id)
}

// GetUserByID retrieves a user by identity.
func (s *Store) GetUserByID(id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.Get(user,
		"SELECT id, username, password, created_at FROM users WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by display name.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.Get(user,
		"SELECT id, username, password, created_at FROM users WHERE username = ?", username)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UserExists reports whether an identity is registered.
func (s *Store) UserExists(id string) (bool, error) {
	var one int
	err := s.db.Get(&one, "SELECT 1 FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
