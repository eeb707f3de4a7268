package models

import (
	"time"
)

// ChatMessage is append-only: once persisted there is no update or delete
// path, room history is the durable record of the conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
