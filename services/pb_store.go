package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"legal-consult/internal/status"
	"legal-consult/models"
)

// PBStore implements Store on top of the embedded PocketBase database.
type PBStore struct {
	app core.App
}

func NewPBStore(app core.App) *PBStore {
	return &PBStore{app: app}
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches both the raw SQLite error and PocketBase's
// record validation error for a unique index hit, which is how a concurrent
// duplicate confirmation surfaces.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

func (s *PBStore) FindLawyer(ctx context.Context, lawyerID string) (*models.Lawyer, error) {
	record, err := s.app.FindRecordById("lawyers", lawyerID)
	if isNotFound(err) {
		return nil, status.ErrLawyerNotFound
	} else if err != nil {
		return nil, err
	}
	return lawyerFromRecord(record), nil
}

func (s *PBStore) LawyerIDForUser(ctx context.Context, userID string) (string, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"lawyers",
		"user_id = {:uid}",
		dbx.Params{"uid": userID},
	)
	if isNotFound(err) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return record.Id, nil
}

func (s *PBStore) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	record, err := s.app.FindRecordById("bookings", bookingID)
	if isNotFound(err) {
		return nil, status.ErrBookingNotFound
	} else if err != nil {
		return nil, err
	}
	return bookingFromRecord(record), nil
}

func (s *PBStore) ListBookings(ctx context.Context, field, id, statusFilter string, offset, limit int) ([]*models.Booking, error) {
	filter := field + " = {:id}"
	params := dbx.Params{"id": id}
	if statusFilter != "" {
		filter += " && status = {:status}"
		params["status"] = statusFilter
	}

	records, err := s.app.FindRecordsByFilter("bookings", filter, "-created", limit, offset, params)
	if err != nil {
		return nil, err
	}

	bookings := make([]*models.Booking, 0, len(records))
	for _, record := range records {
		bookings = append(bookings, bookingFromRecord(record))
	}
	return bookings, nil
}

// CreateConfirmed writes the booking, its captured payment, the escrow hold
// and the initial history row in one transaction. The unique index on
// payments.external_order_id is the durable guard: when two confirmations
// race past the draft index, the loser's insert fails here and nothing of
// its transaction survives.
func (s *PBStore) CreateConfirmed(ctx context.Context, b *models.Booking, p *models.Payment, e *models.Escrow, note string) (*models.Booking, error) {
	var saved *core.Record

	err := s.app.RunInTransaction(func(txApp core.App) error {
		bookings, err := txApp.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}
		bookingRecord := core.NewRecord(bookings)
		applyBooking(bookingRecord, b)
		if err := txApp.Save(bookingRecord); err != nil {
			return fmt.Errorf("save booking: %w", err)
		}

		payments, err := txApp.FindCollectionByNameOrId("payments")
		if err != nil {
			return err
		}
		paymentRecord := core.NewRecord(payments)
		applyPayment(paymentRecord, bookingRecord.Id, p)
		if err := txApp.Save(paymentRecord); err != nil {
			if isUniqueViolation(err) {
				return status.ErrAlreadyConfirmed
			}
			return fmt.Errorf("save payment: %w", err)
		}

		escrow, err := txApp.FindCollectionByNameOrId("escrow")
		if err != nil {
			return err
		}
		escrowRecord := core.NewRecord(escrow)
		escrowRecord.Set("booking_id", bookingRecord.Id)
		escrowRecord.Set("amount", e.Amount)
		escrowRecord.Set("payout_status", e.PayoutStatus)
		if err := txApp.Save(escrowRecord); err != nil {
			return fmt.Errorf("save escrow: %w", err)
		}

		if err := appendHistory(txApp, bookingRecord.Id, "", string(b.Status), b.UserID, note); err != nil {
			return err
		}

		saved = bookingRecord
		return nil
	})
	if err != nil {
		return nil, err
	}

	return bookingFromRecord(saved), nil
}

func (s *PBStore) UpdateBookingStatus(ctx context.Context, b *models.Booking, changedBy, note string) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		record, err := txApp.FindRecordById("bookings", b.ID)
		if isNotFound(err) {
			return status.ErrBookingNotFound
		} else if err != nil {
			return err
		}

		previous := record.GetString("status")

		record.Set("status", string(b.Status))
		record.Set("cancellation_reason", b.CancellationReason)
		record.Set("reschedule_count", b.RescheduleCount)
		if b.ScheduledTime != nil {
			record.Set("scheduled_time", *b.ScheduledTime)
		}
		if b.CompletedAt != nil {
			record.Set("completed_at", *b.CompletedAt)
		}
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		return appendHistory(txApp, b.ID, previous, string(b.Status), changedBy, note)
	})
}

func (s *PBStore) PaymentForBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"payments",
		"booking_id = {:bid}",
		dbx.Params{"bid": bookingID},
	)
	if isNotFound(err) {
		return nil, status.ErrOrderNotFound
	} else if err != nil {
		return nil, err
	}
	return paymentFromRecord(record), nil
}

func (s *PBStore) MarkRefunded(ctx context.Context, paymentID, refundID string) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		record, err := txApp.FindRecordById("payments", paymentID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		record.Set("status", "refunded")
		record.Set("refund_id", refundID)
		record.Set("refunded_at", now)
		if err := txApp.Save(record); err != nil {
			return err
		}

		escrowRecord, err := txApp.FindFirstRecordByFilter(
			"escrow",
			"booking_id = {:bid}",
			dbx.Params{"bid": record.GetString("booking_id")},
		)
		if isNotFound(err) {
			return nil
		} else if err != nil {
			return err
		}
		escrowRecord.Set("payout_status", "refunded")
		escrowRecord.Set("released_at", now)
		return txApp.Save(escrowRecord)
	})
}

func (s *PBStore) SessionForBooking(ctx context.Context, bookingID string) (*models.Session, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"consultations",
		"booking_id = {:bid}",
		dbx.Params{"bid": bookingID},
	)
	if isNotFound(err) {
		return nil, status.ErrSessionNotFound
	} else if err != nil {
		return nil, err
	}
	return sessionFromRecord(record), nil
}

func (s *PBStore) CreateSession(ctx context.Context, sess *models.Session) (*models.Session, error) {
	collection, err := s.app.FindCollectionByNameOrId("consultations")
	if err != nil {
		return nil, err
	}
	record := core.NewRecord(collection)
	record.Set("booking_id", sess.BookingID)
	record.Set("channel_name", sess.ChannelName)
	record.Set("status", sess.Status)
	if sess.StartedAt != nil {
		record.Set("started_at", *sess.StartedAt)
	}
	if err := s.app.Save(record); err != nil {
		return nil, err
	}
	return sessionFromRecord(record), nil
}

func (s *PBStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	record, err := s.app.FindRecordById("consultations", sessionID)
	if isNotFound(err) {
		return nil, status.ErrSessionNotFound
	} else if err != nil {
		return nil, err
	}
	return sessionFromRecord(record), nil
}

func (s *PBStore) CloseSession(ctx context.Context, sess *models.Session) error {
	record, err := s.app.FindRecordById("consultations", sess.ID)
	if isNotFound(err) {
		return status.ErrSessionNotFound
	} else if err != nil {
		return err
	}
	record.Set("status", sess.Status)
	record.Set("duration_seconds", sess.Duration)
	if sess.EndedAt != nil {
		record.Set("ended_at", *sess.EndedAt)
	}
	return s.app.Save(record)
}

// CompleteSession closes the consultation and moves its booking to
// completed in one transaction, so the two never disagree.
func (s *PBStore) CompleteSession(ctx context.Context, sess *models.Session, b *models.Booking, changedBy string) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		record, err := txApp.FindRecordById("consultations", sess.ID)
		if err != nil {
			return err
		}
		record.Set("status", sess.Status)
		record.Set("duration_seconds", sess.Duration)
		if sess.EndedAt != nil {
			record.Set("ended_at", *sess.EndedAt)
		}
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("close consultation: %w", err)
		}

		bookingRecord, err := txApp.FindRecordById("bookings", b.ID)
		if err != nil {
			return err
		}
		previous := bookingRecord.GetString("status")
		bookingRecord.Set("status", string(b.Status))
		if b.CompletedAt != nil {
			bookingRecord.Set("completed_at", *b.CompletedAt)
		}
		if err := txApp.Save(bookingRecord); err != nil {
			return fmt.Errorf("complete booking: %w", err)
		}

		return appendHistory(txApp, b.ID, previous, string(b.Status), changedBy, "consultation ended")
	})
}

func (s *PBStore) SaveMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	collection, err := s.app.FindCollectionByNameOrId("messages")
	if err != nil {
		return nil, err
	}
	record := core.NewRecord(collection)
	record.Set("booking_id", msg.BookingID)
	record.Set("sender_id", msg.SenderID)
	record.Set("content", msg.Content)
	record.Set("sent_at", msg.Timestamp)
	if err := s.app.Save(record); err != nil {
		return nil, err
	}
	return messageFromRecord(record), nil
}

func (s *PBStore) MessageHistory(ctx context.Context, bookingID string, offset, limit int) ([]*models.ChatMessage, error) {
	records := []*core.Record{}
	err := s.app.RecordQuery("messages").
		AndWhere(dbx.NewExp("booking_id = {:bid}", dbx.Params{"bid": bookingID})).
		OrderBy("sent_at ASC").
		Offset(int64(offset)).
		Limit(int64(limit)).
		All(&records)
	if err != nil {
		return nil, err
	}

	messages := make([]*models.ChatMessage, 0, len(records))
	for _, record := range records {
		messages = append(messages, messageFromRecord(record))
	}
	return messages, nil
}

func appendHistory(txApp core.App, bookingID, from, to, changedBy, note string) error {
	collection, err := txApp.FindCollectionByNameOrId("booking_history")
	if err != nil {
		return err
	}
	record := core.NewRecord(collection)
	record.Set("booking_id", bookingID)
	record.Set("from_status", from)
	record.Set("to_status", to)
	record.Set("changed_by", changedBy)
	record.Set("note", note)
	if err := txApp.Save(record); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func applyBooking(record *core.Record, b *models.Booking) {
	record.Set("user_id", b.UserID)
	record.Set("lawyer_id", b.LawyerID)
	record.Set("court_id", b.CourtID)
	record.Set("police_station_id", b.PoliceStationID)
	record.Set("status", string(b.Status))
	record.Set("original_description", b.OriginalText)
	record.Set("ai_summary", b.Summary)
	record.Set("consultation_fee", b.ConsultationFee)
	record.Set("platform_commission", b.PlatformCommission)
	record.Set("lawyer_payout", b.LawyerPayout)
	record.Set("reschedule_count", b.RescheduleCount)
	if b.ScheduledTime != nil {
		record.Set("scheduled_time", *b.ScheduledTime)
	}
}

func applyPayment(record *core.Record, bookingID string, p *models.Payment) {
	record.Set("booking_id", bookingID)
	record.Set("amount", p.Amount)
	record.Set("status", p.Status)
	record.Set("external_order_id", p.OrderID)
	record.Set("external_payment_id", p.ExternalID)
	record.Set("external_signature", p.Signature)
	if p.CapturedAt != nil {
		record.Set("captured_at", *p.CapturedAt)
	}
}

func bookingFromRecord(record *core.Record) *models.Booking {
	b := &models.Booking{
		ID:                 record.Id,
		UserID:             record.GetString("user_id"),
		LawyerID:           record.GetString("lawyer_id"),
		CourtID:            record.GetString("court_id"),
		PoliceStationID:    record.GetString("police_station_id"),
		Status:             models.BookingStatus(record.GetString("status")),
		OriginalText:       record.GetString("original_description"),
		Summary:            record.GetString("ai_summary"),
		ConsultationFee:    int64(record.GetInt("consultation_fee")),
		PlatformCommission: int64(record.GetInt("platform_commission")),
		LawyerPayout:       int64(record.GetInt("lawyer_payout")),
		CancellationReason: record.GetString("cancellation_reason"),
		RescheduleCount:    record.GetInt("reschedule_count"),
		CreatedAt:          record.GetDateTime("created").Time(),
	}
	if t := record.GetDateTime("scheduled_time"); !t.IsZero() {
		tt := t.Time()
		b.ScheduledTime = &tt
	}
	if t := record.GetDateTime("completed_at"); !t.IsZero() {
		tt := t.Time()
		b.CompletedAt = &tt
	}
	return b
}

func paymentFromRecord(record *core.Record) *models.Payment {
	p := &models.Payment{
		ID:         record.Id,
		BookingID:  record.GetString("booking_id"),
		Amount:     int64(record.GetInt("amount")),
		Status:     record.GetString("status"),
		OrderID:    record.GetString("external_order_id"),
		ExternalID: record.GetString("external_payment_id"),
		Signature:  record.GetString("external_signature"),
		RefundID:   record.GetString("refund_id"),
		CreatedAt:  record.GetDateTime("created").Time(),
	}
	if t := record.GetDateTime("captured_at"); !t.IsZero() {
		tt := t.Time()
		p.CapturedAt = &tt
	}
	if t := record.GetDateTime("refunded_at"); !t.IsZero() {
		tt := t.Time()
		p.RefundedAt = &tt
	}
	return p
}

func sessionFromRecord(record *core.Record) *models.Session {
	sess := &models.Session{
		ID:          record.Id,
		BookingID:   record.GetString("booking_id"),
		ChannelName: record.GetString("channel_name"),
		Status:      record.GetString("status"),
		Duration:    int64(record.GetInt("duration_seconds")),
	}
	if t := record.GetDateTime("started_at"); !t.IsZero() {
		tt := t.Time()
		sess.StartedAt = &tt
	}
	if t := record.GetDateTime("ended_at"); !t.IsZero() {
		tt := t.Time()
		sess.EndedAt = &tt
	}
	return sess
}

func lawyerFromRecord(record *core.Record) *models.Lawyer {
	return &models.Lawyer{
		ID:              record.Id,
		UserID:          record.GetString("user_id"),
		Name:            record.GetString("name"),
		ConsultationFee: int64(record.GetInt("consultation_fee")),
		Verified:        record.GetBool("verified"),
	}
}

func messageFromRecord(record *core.Record) *models.ChatMessage {
	return &models.ChatMessage{
		ID:        record.Id,
		BookingID: record.GetString("booking_id"),
		SenderID:  record.GetString("sender_id"),
		Content:   record.GetString("content"),
		Timestamp: record.GetDateTime("sent_at").Time(),
	}
}
