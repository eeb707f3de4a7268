package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"legal-consult/internal/status"
	"legal-consult/models"
	"legal-consult/utils"
)

// Summarizer turns free-form case text into a structured summary. Never
// fatal to the booking flow: callers degrade to the raw text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// PaymentGateway is the adapter in front of the external payment processor.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string, notes map[string]string) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
	Refund(ctx context.Context, paymentID string, amountMinor int64) (string, error)
}

type CreateDraftInput struct {
	LawyerID        string     `json:"lawyer_id"`
	CaseDescription string     `json:"case_description"`
	CourtID         string     `json:"court_id,omitempty"`
	PoliceStationID string     `json:"police_station_id,omitempty"`
	PreferredTime   *time.Time `json:"preferred_time,omitempty"`
}

type PaymentIntent struct {
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// BookingService is the lifecycle orchestrator: drafts in, confirmed
// bookings out, status transitions after that. It holds no locks of its
// own; the draft store and the durable store's unique order index provide
// all required synchronization.
type BookingService struct {
	store          Store
	drafts         *DraftService
	gateway        PaymentGateway
	summarizer     Summarizer
	notify         Notifier
	breaker        *utils.CircuitBreaker
	commissionRate decimal.Decimal
	currency       string
}

func NewBookingService(store Store, drafts *DraftService, gateway PaymentGateway, summarizer Summarizer, notify Notifier, commissionRate decimal.Decimal) *BookingService {
	return &BookingService{
		store:          store,
		drafts:         drafts,
		gateway:        gateway,
		summarizer:     summarizer,
		notify:         notify,
		breaker:        utils.NewCircuitBreaker("summarizer"),
		commissionRate: commissionRate,
		currency:       "INR",
	}
}

// CreateDraft validates the lawyer, summarizes the case text and stores an
// ephemeral draft. No durable writes happen here.
func (s *BookingService) CreateDraft(ctx context.Context, userID string, in CreateDraftInput) (*models.Draft, error) {
	lawyer, err := s.store.FindLawyer(ctx, in.LawyerID)
	if err != nil {
		return nil, err
	}
	if !lawyer.Verified {
		return nil, status.ErrLawyerNotFound
	}

	summary, generated := s.summarize(ctx, in.CaseDescription)

	draft := &models.Draft{
		ID:               uuid.NewString(),
		UserID:           userID,
		LawyerID:         lawyer.ID,
		LawyerName:       lawyer.Name,
		CourtID:          in.CourtID,
		PoliceStationID:  in.PoliceStationID,
		OriginalText:     in.CaseDescription,
		Summary:          summary,
		SummaryGenerated: generated,
		ConsultationFee:  lawyer.ConsultationFee,
		PreferredTime:    in.PreferredTime,
		ExpiresAt:        time.Now().UTC().Add(s.drafts.ttl),
	}

	if err := s.drafts.Put(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// summarize calls the summarizer behind the circuit breaker and falls back
// to the raw text when it fails.
func (s *BookingService) summarize(ctx context.Context, text string) (summary string, generated bool) {
	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.summarizer.Summarize(ctx, text)
	})
	if err != nil {
		log.Printf("Summarizer unavailable, using raw case text: %v", err)
		return text, false
	}
	return result.(string), true
}

// RegenerateSummary replaces a draft's text and summary in place. The TTL
// is not extended: regeneration does not buy extra time.
func (s *BookingService) RegenerateSummary(ctx context.Context, draftID, userID, newText string) (*models.Draft, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.UserID != userID {
		return nil, status.ErrForbidden
	}

	summary, generated := s.summarize(ctx, newText)
	draft.OriginalText = newText
	draft.Summary = summary
	draft.SummaryGenerated = generated

	if err := s.drafts.Rewrite(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// CreatePaymentIntent creates an external order for the draft's fee and
// links order to draft so confirmation can find it later. A gateway failure
// surfaces to the caller for an explicit retry; retrying silently could
// leave multiple live orders against one draft.
func (s *BookingService) CreatePaymentIntent(ctx context.Context, draftID, userID string) (*PaymentIntent, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.UserID != userID {
		return nil, status.ErrForbidden
	}

	amountMinor := models.MinorUnits(draft.ConsultationFee)

	orderID, err := s.gateway.CreateOrder(ctx, amountMinor, s.currency, map[string]string{"draft_id": draftID})
	if err != nil {
		return nil, err
	}

	draft.OrderID = orderID
	if err := s.drafts.Rewrite(ctx, draft); err != nil {
		return nil, err
	}
	if err := s.drafts.LinkOrder(ctx, draftID, orderID); err != nil {
		return nil, err
	}

	return &PaymentIntent{
		OrderID:     orderID,
		AmountMinor: amountMinor,
		Currency:    s.currency,
	}, nil
}

// Confirm is the critical path: it turns a paid draft into a durable
// booking exactly once.
//
// Ordering matters. The cryptographic proof is checked before any store is
// touched; the order index is the idempotency gate; the four durable rows
// commit in one transaction; cache cleanup comes strictly last. A crash
// after commit but before cleanup leaves a self-expiring cache entry, never
// a lost payment or a duplicate booking.
func (s *BookingService) Confirm(ctx context.Context, orderID, paymentID, signature string) (*models.Booking, error) {
	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		return nil, status.ErrInvalidSignature
	}

	draftID, err := s.drafts.ResolveOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}

	commission, payout := models.SplitFee(draft.ConsultationFee, s.commissionRate)
	now := time.Now().UTC()

	booking := &models.Booking{
		UserID:             draft.UserID,
		LawyerID:           draft.LawyerID,
		CourtID:            draft.CourtID,
		PoliceStationID:    draft.PoliceStationID,
		Status:             models.StatusPending,
		OriginalText:       draft.OriginalText,
		Summary:            draft.Summary,
		ConsultationFee:    draft.ConsultationFee,
		PlatformCommission: commission,
		LawyerPayout:       payout,
		ScheduledTime:      draft.PreferredTime,
	}
	paymentRow := &models.Payment{
		Amount:     models.MinorUnits(draft.ConsultationFee),
		Status:     "captured",
		OrderID:    orderID,
		ExternalID: paymentID,
		Signature:  signature,
		CapturedAt: &now,
	}
	escrow := &models.Escrow{
		Amount:       models.MinorUnits(draft.ConsultationFee),
		PayoutStatus: "pending",
	}

	booking, err = s.store.CreateConfirmed(ctx, booking, paymentRow, escrow, "Booking created and payment verified")
	if err != nil {
		return nil, err
	}

	// The booking is durable and authoritative from here on; cache cleanup
	// failures are retried out-of-band, never reported to the caller.
	if err := s.drafts.Delete(ctx, draftID, orderID); err != nil {
		log.Printf("Error deleting confirmed draft %s: %v", draftID, err)
		s.drafts.QueueCleanup(ctx, draftID, orderID)
	}

	if s.notify != nil {
		lawyer, lerr := s.store.FindLawyer(ctx, booking.LawyerID)
		if lerr == nil {
			s.notify.NotifyUser(lawyer.UserID, map[string]any{
				"type":       "booking_created",
				"booking_id": booking.ID,
			})
		}
	}

	return booking, nil
}

// roleFor resolves the actor's relationship to a booking.
func (s *BookingService) roleFor(ctx context.Context, b *models.Booking, actorID string) (models.Role, bool) {
	if b.UserID == actorID {
		return models.RoleRequester, true
	}
	lawyerID, err := s.store.LawyerIDForUser(ctx, actorID)
	if err == nil && lawyerID != "" && lawyerID == b.LawyerID {
		return models.RoleLawyer, true
	}
	return "", false
}

// TransitionStatus applies one step of the booking state machine. The
// transition table is the single authority; nothing here compares raw
// status strings per endpoint.
func (s *BookingService) TransitionStatus(ctx context.Context, bookingID, actorID string, next models.BookingStatus, reason string) (*models.Booking, error) {
	if !models.ValidStatus(string(next)) {
		return nil, status.ErrInvalidState
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	role, ok := s.roleFor(ctx, booking, actorID)
	if !ok {
		return nil, status.ErrForbidden
	}

	if !booking.Status.CanTransition(role, next) {
		return nil, status.ErrInvalidState
	}

	booking.Status = next
	if reason != "" && (next == models.StatusRejected || next == models.StatusCancelled) {
		booking.CancellationReason = reason
	}
	if next == models.StatusRescheduled {
		booking.RescheduleCount++
	}

	if err := s.store.UpdateBookingStatus(ctx, booking, actorID, reason); err != nil {
		return nil, err
	}

	// Every confirmed booking is backed by a captured payment, so any
	// cancellation refunds it. Failures are logged and left to support
	// tooling; the status change itself already committed.
	if next == models.StatusCancelled {
		s.refund(ctx, booking)
	}

	s.notifyStatusChange(ctx, booking, role)

	return booking, nil
}

func (s *BookingService) refund(ctx context.Context, b *models.Booking) {
	payment, err := s.store.PaymentForBooking(ctx, b.ID)
	if err != nil || payment.Status != "captured" {
		return
	}

	refundID, err := s.gateway.Refund(ctx, payment.ExternalID, payment.Amount)
	if err != nil {
		log.Printf("Error refunding payment for booking %s: %v", b.ID, err)
		return
	}
	if err := s.store.MarkRefunded(ctx, payment.ID, refundID); err != nil {
		log.Printf("Error recording refund %s: %v", refundID, err)
	}
}

func (s *BookingService) notifyStatusChange(ctx context.Context, b *models.Booking, changedBy models.Role) {
	if s.notify == nil {
		return
	}

	message := map[string]any{
		"type":       "booking_status",
		"booking_id": b.ID,
		"status":     string(b.Status),
	}
	if changedBy == models.RoleLawyer {
		s.notify.NotifyUser(b.UserID, message)
		return
	}
	lawyer, err := s.store.FindLawyer(ctx, b.LawyerID)
	if err == nil {
		s.notify.NotifyUser(lawyer.UserID, message)
	}
}

// GetBooking returns a booking to one of its parties.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.roleFor(ctx, booking, actorID); !ok {
		return nil, status.ErrForbidden
	}
	return booking, nil
}

// ListBookings returns the actor's bookings, newest first. Requesters see
// their own, lawyers see the ones assigned to them.
func (s *BookingService) ListBookings(ctx context.Context, actorID, statusFilter string, offset, limit int) ([]*models.Booking, error) {
	lawyerID, err := s.store.LawyerIDForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if lawyerID != "" {
		return s.store.ListBookings(ctx, "lawyer_id", lawyerID, statusFilter, offset, limit)
	}
	return s.store.ListBookings(ctx, "user_id", actorID, statusFilter, offset, limit)
}

// IsParticipant reports whether the actor is a party to the booking. Used
// by the chat layer as its authorization source of truth.
func (s *BookingService) IsParticipant(ctx context.Context, bookingID, actorID string) (bool, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	_, ok := s.roleFor(ctx, booking, actorID)
	return ok, nil
}
