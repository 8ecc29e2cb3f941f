package database

import "wavechat/models"

// AppendMessage stores a message under its conversation key. The write is
// synchronous; when it returns nil the message is durable.
func (s *Store) AppendMessage(conversationKey string, msg models.ChatMessage) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, conversation_key, sender_id, receiver_id, body, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, conversationKey, msg.Sender, msg.Receiver, msg.Text, msg.Timestamp,
	)
	return err
}

// History returns the messages of a conversation in append order. A
// conversation that does not exist yet yields an empty slice, not an
// error. Ordering is by insertion (rowid), never by timestamp, so
// client clock skew cannot reorder history.
func (s *Store) History(conversationKey string) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	err := s.db.Select(&messages,
		`SELECT id, sender_id, receiver_id, body, sent_at
		FROM messages
		WHERE conversation_key = ?
		ORDER BY rowid`,
		conversationKey,
	)
	if err != nil {
		return nil, err
	}
	return messages, nil
}
