package models

// ChatMessage is a direct text message between two users. Messages are
// immutable once stored; history order is append order, the timestamp is
// informational only.
type ChatMessage struct {
	ID        string `json:"id" db:"id"`
	Sender    string `json:"sender" db:"sender_id"`
	Receiver  string `json:"receiver" db:"receiver_id"`
	Text      string `json:"text" db:"body"`
	Timestamp int64  `json:"timestamp" db:"sent_at"`
}

// HistoryRequest asks for the conversation history between two users.
type HistoryRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}
