package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	StatusPending     BookingStatus = "pending"
	StatusAccepted    BookingStatus = "accepted"
	StatusRejected    BookingStatus = "rejected"
	StatusRescheduled BookingStatus = "rescheduled"
	StatusCancelled   BookingStatus = "cancelled"
	StatusCompleted   BookingStatus = "completed"
)

// Role of an actor relative to a booking.
type Role string

const (
	RoleRequester Role = "requester"
	RoleLawyer    Role = "lawyer"
)

type Booking struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"user_id"`
	LawyerID           string        `json:"lawyer_id"`
	CourtID            string        `json:"court_id,omitempty"`
	PoliceStationID    string        `json:"police_station_id,omitempty"`
	Status             BookingStatus `json:"status"`
	OriginalText       string        `json:"original_description"`
	Summary            string        `json:"ai_summary"`
	ConsultationFee    int64         `json:"consultation_fee"`
	PlatformCommission int64         `json:"platform_commission"`
	LawyerPayout       int64         `json:"lawyer_payout"`
	ScheduledTime      *time.Time    `json:"scheduled_time,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	RescheduleCount    int           `json:"reschedule_count"`
	CreatedAt          time.Time     `json:"created_at"`
}

// transitions maps current status to the statuses each role may move it to.
// completed is deliberately absent everywhere: a booking only completes when
// its consultation session ends.
var transitions = map[BookingStatus]map[Role][]BookingStatus{
	StatusPending: {
		RoleLawyer:    {StatusAccepted, StatusRejected, StatusRescheduled},
		RoleRequester: {StatusCancelled},
	},
	StatusAccepted: {
		RoleRequester: {StatusCancelled},
	},
	StatusRescheduled: {
		RoleRequester: {StatusCancelled},
	},
}

// IsTerminal reports whether no further transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether role may move a booking from s to next.
func (s BookingStatus) CanTransition(role Role, next BookingStatus) bool {
	for _, allowed := range transitions[s][role] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidStatus reports whether raw names a known booking status.
func ValidStatus(raw string) bool {
	switch BookingStatus(raw) {
	case StatusPending, StatusAccepted, StatusRejected,
		StatusRescheduled, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// SplitFee computes the platform commission and lawyer payout for a
// consultation fee in whole currency units. Integer arithmetic only;
// commission + payout always equals the fee.
func SplitFee(fee int64, commissionRate decimal.Decimal) (commission, payout int64) {
	commission = decimal.NewFromInt(fee).Mul(commissionRate).Round(0).IntPart()
	payout = fee - commission
	return commission, payout
}

// MinorUnits converts a whole-unit fee to payment-gateway minor units.
func MinorUnits(fee int64) int64 {
	return decimal.NewFromInt(fee).Mul(decimal.NewFromInt(100)).IntPart()
}
