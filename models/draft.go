package models

import (
	"time"
)

// Draft is an unconfirmed booking intent. It lives only in the draft store
// and expires on its own; nothing durable exists until payment is verified.
type Draft struct {
	ID               string     `json:"draft_id"`
	UserID           string     `json:"user_id"`
	LawyerID         string     `json:"lawyer_id"`
	LawyerName       string     `json:"lawyer_name"`
	CourtID          string     `json:"court_id,omitempty"`
	PoliceStationID  string     `json:"police_station_id,omitempty"`
	OriginalText     string     `json:"original_description"`
	Summary          string     `json:"ai_summary"`
	SummaryGenerated bool       `json:"summary_generated"`
	ConsultationFee  int64      `json:"consultation_fee"`
	PreferredTime    *time.Time `json:"preferred_time,omitempty"`
	OrderID          string     `json:"order_id,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
}
