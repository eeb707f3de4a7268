package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-consult/internal/status"
	"legal-consult/models"
)

// fakeStore is an in-memory Store with switches for the failure modes the
// orchestrator has to survive.
type fakeStore struct {
	lawyers     map[string]*models.Lawyer
	bookings    map[string]*models.Booking
	payments    map[string]*models.Payment
	nextID      int
	confirmErr  error
	historyNote []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lawyers: map[string]*models.Lawyer{
			"lawyer-1": {ID: "lawyer-1", UserID: "lawyer-user-1", Name: "Asha Rao", ConsultationFee: 1000, Verified: true},
			"lawyer-2": {ID: "lawyer-2", UserID: "lawyer-user-2", Name: "Unverified", ConsultationFee: 500, Verified: false},
		},
		bookings: map[string]*models.Booking{},
		payments: map[string]*models.Payment{},
	}
}

func (f *fakeStore) FindLawyer(ctx context.Context, lawyerID string) (*models.Lawyer, error) {
	l, ok := f.lawyers[lawyerID]
	if !ok {
		return nil, status.ErrLawyerNotFound
	}
	return l, nil
}

func (f *fakeStore) LawyerIDForUser(ctx context.Context, userID string) (string, error) {
	for _, l := range f.lawyers {
		if l.UserID == userID {
			return l.ID, nil
		}
	}
	return "", nil
}

func (f *fakeStore) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, status.ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

func (f *fakeStore) ListBookings(ctx context.Context, field, id, statusFilter string, offset, limit int) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range f.bookings {
		matches := (field == "user_id" && b.UserID == id) || (field == "lawyer_id" && b.LawyerID == id)
		if matches && (statusFilter == "" || string(b.Status) == statusFilter) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateConfirmed(ctx context.Context, b *models.Booking, p *models.Payment, e *models.Escrow, note string) (*models.Booking, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	for _, existing := range f.payments {
		if existing.OrderID == p.OrderID {
			return nil, status.ErrAlreadyConfirmed
		}
	}
	f.nextID++
	b.ID = "booking-" + strconv.Itoa(f.nextID)
	b.CreatedAt = time.Now().UTC()
	f.bookings[b.ID] = b
	p.ID = "payment-" + strconv.Itoa(f.nextID)
	p.BookingID = b.ID
	f.payments[p.ID] = p
	f.historyNote = append(f.historyNote, note)
	return b, nil
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, b *models.Booking, changedBy, note string) error {
	stored, ok := f.bookings[b.ID]
	if !ok {
		return status.ErrBookingNotFound
	}
	*stored = *b
	f.historyNote = append(f.historyNote, note)
	return nil
}

func (f *fakeStore) PaymentForBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			return p, nil
		}
	}
	return nil, status.ErrOrderNotFound
}

func (f *fakeStore) MarkRefunded(ctx context.Context, paymentID, refundID string) error {
	p, ok := f.payments[paymentID]
	if !ok {
		return status.ErrOrderNotFound
	}
	p.Status = "refunded"
	p.RefundID = refundID
	return nil
}

func (f *fakeStore) SessionForBooking(ctx context.Context, bookingID string) (*models.Session, error) {
	return nil, status.ErrSessionNotFound
}

func (f *fakeStore) CreateSession(ctx context.Context, sess *models.Session) (*models.Session, error) {
	sess.ID = "session-1"
	return sess, nil
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return nil, status.ErrSessionNotFound
}

func (f *fakeStore) CloseSession(ctx context.Context, sess *models.Session) error {
	return nil
}

func (f *fakeStore) CompleteSession(ctx context.Context, sess *models.Session, b *models.Booking, changedBy string) error {
	return nil
}

func (f *fakeStore) SaveMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	msg.ID = "msg-1"
	return msg, nil
}

func (f *fakeStore) MessageHistory(ctx context.Context, bookingID string, offset, limit int) ([]*models.ChatMessage, error) {
	return nil, nil
}

type fakeGateway struct {
	orderID     string
	orderErr    error
	refundCalls []string
	refundErr   error
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amountMinor int64, currency string, notes map[string]string) (string, error) {
	if g.orderErr != nil {
		return "", g.orderErr
	}
	return g.orderID, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == "valid"
}

func (g *fakeGateway) Refund(ctx context.Context, paymentID string, amountMinor int64) (string, error) {
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refundCalls = append(g.refundCalls, paymentID)
	return "rfnd-1", nil
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (s *fakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

type fakeNotifier struct {
	messages []map[string]any
	users    []string
}

func (n *fakeNotifier) NotifyUser(userID string, message map[string]any) {
	n.users = append(n.users, userID)
	n.messages = append(n.messages, message)
}

func newBookingFixture(t *testing.T) (*BookingService, *fakeStore, *fakeGateway, *fakeNotifier, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	store := newFakeStore()
	gateway := &fakeGateway{orderID: "order-9"}
	notifier := &fakeNotifier{}
	drafts := NewDraftService(db, 15*time.Minute)
	svc := NewBookingService(store, drafts, gateway, &fakeSummarizer{summary: "generated summary"}, notifier, decimal.RequireFromString("0.10"))
	return svc, store, gateway, notifier, mock
}

func TestCreateDraft(t *testing.T) {
	svc, _, _, _, mock := newBookingFixture(t)

	mock.Regexp().ExpectSet(`booking_draft:.*`, `.*`, 15*time.Minute).SetVal("OK")

	draft, err := svc.CreateDraft(context.Background(), "user-1", CreateDraftInput{
		LawyerID:        "lawyer-1",
		CaseDescription: "property dispute with landlord",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, draft.ID)
	assert.Equal(t, "generated summary", draft.Summary)
	assert.True(t, draft.SummaryGenerated)
	assert.Equal(t, int64(1000), draft.ConsultationFee)
	assert.Equal(t, "Asha Rao", draft.LawyerName)
}

func TestCreateDraftUnverifiedLawyer(t *testing.T) {
	svc, _, _, _, _ := newBookingFixture(t)

	_, err := svc.CreateDraft(context.Background(), "user-1", CreateDraftInput{
		LawyerID:        "lawyer-2",
		CaseDescription: "anything",
	})
	assert.ErrorIs(t, err, status.ErrLawyerNotFound)
}

func TestCreateDraftSummarizerDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := newFakeStore()
	drafts := NewDraftService(db, 15*time.Minute)
	svc := NewBookingService(store, drafts, &fakeGateway{}, &fakeSummarizer{err: errors.New("model overloaded")}, nil, decimal.RequireFromString("0.10"))

	mock.Regexp().ExpectSet(`booking_draft:.*`, `.*`, 15*time.Minute).SetVal("OK")

	draft, err := svc.CreateDraft(context.Background(), "user-1", CreateDraftInput{
		LawyerID:        "lawyer-1",
		CaseDescription: "raw case text",
	})
	require.NoError(t, err)
	assert.Equal(t, "raw case text", draft.Summary)
	assert.False(t, draft.SummaryGenerated)
}

func confirmableDraft() *models.Draft {
	return &models.Draft{
		ID:              "draft-1",
		UserID:          "user-1",
		LawyerID:        "lawyer-1",
		OriginalText:    "property dispute",
		Summary:         "summary",
		ConsultationFee: 1000,
		OrderID:         "order-9",
	}
}

func expectConfirmReads(t *testing.T, mock redismock.ClientMock, draft *models.Draft) {
	t.Helper()
	data, err := json.Marshal(draft)
	require.NoError(t, err)
	mock.ExpectGet("order_draft:order-9").SetVal(draft.ID)
	mock.ExpectGet("booking_draft:" + draft.ID).SetVal(string(data))
}

func TestConfirmCreatesBooking(t *testing.T) {
	svc, store, _, notifier, mock := newBookingFixture(t)
	draft := confirmableDraft()

	expectConfirmReads(t, mock, draft)
	mock.ExpectDel("booking_draft:draft-1", "order_draft:order-9").SetVal(2)

	booking, err := svc.Confirm(context.Background(), "order-9", "pay-1", "valid")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, int64(1000), booking.ConsultationFee)
	assert.Equal(t, int64(100), booking.PlatformCommission)
	assert.Equal(t, int64(900), booking.LawyerPayout)

	payment, err := store.PaymentForBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "captured", payment.Status)
	assert.Equal(t, int64(100000), payment.Amount)

	// Lawyer got the new-booking push.
	require.Len(t, notifier.users, 1)
	assert.Equal(t, "lawyer-user-1", notifier.users[0])
}

func TestConfirmBadSignature(t *testing.T) {
	svc, store, _, _, _ := newBookingFixture(t)

	_, err := svc.Confirm(context.Background(), "order-9", "pay-1", "forged")
	assert.ErrorIs(t, err, status.ErrInvalidSignature)
	assert.Empty(t, store.bookings)
}

func TestConfirmSecondCallFindsNoOrder(t *testing.T) {
	svc, _, _, _, mock := newBookingFixture(t)

	// First confirm cleaned the index; the retry resolves nothing.
	mock.ExpectGet("order_draft:order-9").RedisNil()

	_, err := svc.Confirm(context.Background(), "order-9", "pay-1", "valid")
	assert.ErrorIs(t, err, status.ErrOrderNotFound)
}

func TestConfirmConcurrentLoser(t *testing.T) {
	svc, store, _, _, mock := newBookingFixture(t)
	draft := confirmableDraft()

	// Both confirms read the draft before either deletes it; the store's
	// unique order index rejects the second insert.
	store.confirmErr = status.ErrAlreadyConfirmed
	expectConfirmReads(t, mock, draft)

	_, err := svc.Confirm(context.Background(), "order-9", "pay-1", "valid")
	assert.ErrorIs(t, err, status.ErrAlreadyConfirmed)
}

func TestConfirmCleanupFailureQueuesRetry(t *testing.T) {
	svc, _, _, _, mock := newBookingFixture(t)
	draft := confirmableDraft()

	expectConfirmReads(t, mock, draft)
	mock.ExpectDel("booking_draft:draft-1", "order_draft:order-9").SetErr(errors.New("connection reset"))
	mock.ExpectLPush("draft_cleanup_retry", "draft-1|order-9").SetVal(1)

	booking, err := svc.Confirm(context.Background(), "order-9", "pay-1", "valid")
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func seedBooking(store *fakeStore, bookingStatus models.BookingStatus) *models.Booking {
	b := &models.Booking{
		ID:       "booking-1",
		UserID:   "user-1",
		LawyerID: "lawyer-1",
		Status:   bookingStatus,
	}
	store.bookings[b.ID] = b
	return b
}

func TestTransitionStatusLawyerAccepts(t *testing.T) {
	svc, store, _, notifier, _ := newBookingFixture(t)
	seedBooking(store, models.StatusPending)

	booking, err := svc.TransitionStatus(context.Background(), "booking-1", "lawyer-user-1", models.StatusAccepted, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, booking.Status)

	// The requester hears about it.
	require.Len(t, notifier.users, 1)
	assert.Equal(t, "user-1", notifier.users[0])
}

func TestTransitionStatusForbiddenActor(t *testing.T) {
	svc, store, _, _, _ := newBookingFixture(t)
	seedBooking(store, models.StatusPending)

	_, err := svc.TransitionStatus(context.Background(), "booking-1", "stranger", models.StatusAccepted, "")
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestTransitionStatusRequesterCannotAccept(t *testing.T) {
	svc, store, _, _, _ := newBookingFixture(t)
	seedBooking(store, models.StatusPending)

	_, err := svc.TransitionStatus(context.Background(), "booking-1", "user-1", models.StatusAccepted, "")
	assert.ErrorIs(t, err, status.ErrInvalidState)
}

func TestTransitionStatusTerminalIsFinal(t *testing.T) {
	svc, store, _, _, _ := newBookingFixture(t)
	seedBooking(store, models.StatusRejected)

	_, err := svc.TransitionStatus(context.Background(), "booking-1", "lawyer-user-1", models.StatusAccepted, "")
	assert.ErrorIs(t, err, status.ErrInvalidState)
}

func TestCancelAcceptedBookingRefunds(t *testing.T) {
	svc, store, gateway, _, _ := newBookingFixture(t)
	booking := seedBooking(store, models.StatusAccepted)
	store.payments["payment-1"] = &models.Payment{
		ID:         "payment-1",
		BookingID:  booking.ID,
		Amount:     100000,
		Status:     "captured",
		ExternalID: "pay-1",
	}

	updated, err := svc.TransitionStatus(context.Background(), "booking-1", "user-1", models.StatusCancelled, "found another lawyer")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
	assert.Equal(t, "found another lawyer", updated.CancellationReason)

	require.Len(t, gateway.refundCalls, 1)
	assert.Equal(t, "pay-1", gateway.refundCalls[0])
	assert.Equal(t, "refunded", store.payments["payment-1"].Status)
}

func TestCancelPendingBookingRefunds(t *testing.T) {
	svc, store, gateway, _, _ := newBookingFixture(t)
	booking := seedBooking(store, models.StatusPending)
	store.payments["payment-1"] = &models.Payment{
		ID:         "payment-1",
		BookingID:  booking.ID,
		Amount:     100000,
		Status:     "captured",
		ExternalID: "pay-1",
	}

	// The payment is captured at confirmation, before the lawyer ever
	// responds, so cancelling a still-pending booking refunds it too.
	_, err := svc.TransitionStatus(context.Background(), "booking-1", "user-1", models.StatusCancelled, "")
	require.NoError(t, err)
	require.Len(t, gateway.refundCalls, 1)
	assert.Equal(t, "pay-1", gateway.refundCalls[0])
	assert.Equal(t, "refunded", store.payments["payment-1"].Status)
}

func TestCancelWithoutCapturedPaymentNoRefund(t *testing.T) {
	svc, store, gateway, _, _ := newBookingFixture(t)
	booking := seedBooking(store, models.StatusPending)
	store.payments["payment-1"] = &models.Payment{
		ID:         "payment-1",
		BookingID:  booking.ID,
		Status:     "refunded",
		ExternalID: "pay-1",
	}

	_, err := svc.TransitionStatus(context.Background(), "booking-1", "user-1", models.StatusCancelled, "")
	require.NoError(t, err)
	assert.Empty(t, gateway.refundCalls)
}

func TestRefundFailureDoesNotRevertStatus(t *testing.T) {
	svc, store, gateway, _, _ := newBookingFixture(t)
	booking := seedBooking(store, models.StatusAccepted)
	gateway.refundErr = errors.New("gateway timeout")
	store.payments["payment-1"] = &models.Payment{
		ID:         "payment-1",
		BookingID:  booking.ID,
		Status:     "captured",
		ExternalID: "pay-1",
	}

	updated, err := svc.TransitionStatus(context.Background(), "booking-1", "user-1", models.StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
	assert.Equal(t, "captured", store.payments["payment-1"].Status)
}

func TestGetBookingPartiesOnly(t *testing.T) {
	svc, store, _, _, _ := newBookingFixture(t)
	seedBooking(store, models.StatusPending)

	_, err := svc.GetBooking(context.Background(), "booking-1", "user-1")
	assert.NoError(t, err)

	_, err = svc.GetBooking(context.Background(), "booking-1", "lawyer-user-1")
	assert.NoError(t, err)

	_, err = svc.GetBooking(context.Background(), "booking-1", "stranger")
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestListBookingsByRole(t *testing.T) {
	svc, store, _, _, _ := newBookingFixture(t)
	seedBooking(store, models.StatusPending)

	mine, err := svc.ListBookings(context.Background(), "user-1", "", 0, 50)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	assigned, err := svc.ListBookings(context.Background(), "lawyer-user-1", "", 0, 50)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	other, err := svc.ListBookings(context.Background(), "stranger", "", 0, 50)
	require.NoError(t, err)
	assert.Empty(t, other)
}
