package services

import (
	"context"

	"legal-consult/models"
)

// Store is the durable system of record for bookings and everything hanging
// off them. The one hard requirement is CreateConfirmed: all four rows commit
// as a single transaction, and a duplicate external order id must fail with
// ErrAlreadyConfirmed instead of producing a second booking.
type Store interface {
	FindLawyer(ctx context.Context, lawyerID string) (*models.Lawyer, error)
	// LawyerIDForUser resolves a user's lawyer profile id, or "" when the
	// user has none.
	LawyerIDForUser(ctx context.Context, userID string) (string, error)

	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	ListBookings(ctx context.Context, field, id, statusFilter string, offset, limit int) ([]*models.Booking, error)
	CreateConfirmed(ctx context.Context, b *models.Booking, p *models.Payment, e *models.Escrow, note string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, b *models.Booking, changedBy, note string) error

	PaymentForBooking(ctx context.Context, bookingID string) (*models.Payment, error)
	MarkRefunded(ctx context.Context, paymentID, refundID string) error

	SessionForBooking(ctx context.Context, bookingID string) (*models.Session, error)
	CreateSession(ctx context.Context, sess *models.Session) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	// CloseSession persists a closed consultation without touching its
	// booking, for sessions outlived by a terminal booking.
	CloseSession(ctx context.Context, sess *models.Session) error
	CompleteSession(ctx context.Context, sess *models.Session, b *models.Booking, changedBy string) error

	SaveMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	MessageHistory(ctx context.Context, bookingID string, offset, limit int) ([]*models.ChatMessage, error)
}
