package models

import (
	"time"
)

type Session struct {
	ID          string     `json:"consultation_id"`
	BookingID   string     `json:"booking_id"`
	ChannelName string     `json:"channel_name"`
	Status      string     `json:"status"` // active, completed
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Duration    int64      `json:"duration_seconds"`
}

// SessionHandle is what a participant needs to join the live channel.
type SessionHandle struct {
	SessionID   string `json:"consultation_id"`
	ChannelName string `json:"channel_name"`
	Token       string `json:"token"`
}
