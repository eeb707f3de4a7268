package models

import (
	"time"
)

type Payment struct {
	ID          string     `json:"payment_id"`
	BookingID   string     `json:"booking_id"`
	Amount      int64      `json:"amount"` // minor units
	Status      string     `json:"status"` // pending, captured, failed, refunded
	OrderID     string     `json:"external_order_id"`
	ExternalID  string     `json:"external_payment_id,omitempty"`
	Signature   string     `json:"external_signature,omitempty"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
	RefundID    string     `json:"refund_id,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Escrow struct {
	ID           string     `json:"id"`
	BookingID    string     `json:"booking_id"`
	Amount       int64      `json:"amount"` // minor units
	HeldUntil    *time.Time `json:"held_until,omitempty"`
	ReleasedAt   *time.Time `json:"released_at,omitempty"`
	PayoutStatus string     `json:"payout_status"` // pending, released, refunded
}
