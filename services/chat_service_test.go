package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-consult/internal/status"
	"legal-consult/models"
)

// recordingConn captures everything the hub writes to it.
type recordingConn struct {
	mu     sync.Mutex
	writes []*models.ChatMessage
	got    chan struct{}
	closed bool
}

func newRecordingConn() *recordingConn {
	return &recordingConn{got: make(chan struct{}, 16)}
}

func (c *recordingConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg, ok := v.(*models.ChatMessage); ok {
		c.writes = append(c.writes, msg)
	}
	c.got <- struct{}{}
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) waitForWrite(t *testing.T) {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a delivered message")
	}
}

func (c *recordingConn) messages() []*models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.ChatMessage, len(c.writes))
	copy(out, c.writes)
	return out
}

func newChatFixture(t *testing.T) (*ChatService, *fakeStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	store := newFakeStore()
	store.bookings["booking-1"] = &models.Booking{
		ID:       "booking-1",
		UserID:   "user-1",
		LawyerID: "lawyer-1",
		Status:   models.StatusAccepted,
	}
	return NewChatService(store, db, 8), store, mock
}

func TestChatSendFansOutToAllMembers(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	requesterConn := newRecordingConn()
	lawyerConn := newRecordingConn()

	m1, err := svc.Attach(ctx, requesterConn, "booking-1", "user-1")
	require.NoError(t, err)
	defer svc.Detach(m1)

	m2, err := svc.Attach(ctx, lawyerConn, "booking-1", "lawyer-user-1")
	require.NoError(t, err)
	defer svc.Detach(m2)

	saved, err := svc.Send(ctx, "booking-1", "user-1", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	// Sender gets the echo too.
	requesterConn.waitForWrite(t)
	lawyerConn.waitForWrite(t)

	require.Len(t, requesterConn.messages(), 1)
	require.Len(t, lawyerConn.messages(), 1)
	assert.Equal(t, "hello", lawyerConn.messages()[0].Content)
	assert.Equal(t, "user-1", lawyerConn.messages()[0].SenderID)
}

func TestChatSendPersistsWithoutConnections(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	saved, err := svc.Send(context.Background(), "booking-1", "user-1", "offline message")
	require.NoError(t, err)
	assert.Equal(t, "offline message", saved.Content)
}

func TestChatAttachStranger(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	_, err := svc.Attach(context.Background(), newRecordingConn(), "booking-1", "stranger")
	assert.ErrorIs(t, err, status.ErrForbidden)
	assert.Equal(t, 0, svc.ConnectionCount())
}

func TestChatDetachReclaimsRoom(t *testing.T) {
	svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	m, err := svc.Attach(ctx, newRecordingConn(), "booking-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.RoomCount())
	assert.Equal(t, 1, svc.RoomSize("booking-1"))

	svc.Detach(m)
	assert.Equal(t, 0, svc.RoomCount())
	assert.Equal(t, 0, svc.RoomSize("booking-1"))

	// Double detach is a no-op.
	svc.Detach(m)
	assert.Equal(t, 0, svc.RoomCount())
}

func TestChatHistoryParticipantGate(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	_, err := svc.History(context.Background(), "booking-1", "user-1", 0, 50)
	assert.NoError(t, err)

	_, err = svc.History(context.Background(), "booking-1", "stranger", 0, 50)
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestChatTicketRoundTrip(t *testing.T) {
	svc, _, mock := newChatFixture(t)
	ctx := context.Background()

	mock.Regexp().ExpectSet(`chat_ticket:.*`, `user-1\|booking-1`, 30*time.Second).SetVal("OK")

	ticket, err := svc.IssueTicket(ctx, "booking-1", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, ticket)

	mock.ExpectGetDel("chat_ticket:" + ticket).SetVal("user-1|booking-1")

	userID, err := svc.RedeemTicket(ctx, ticket, "booking-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestChatTicketSingleUse(t *testing.T) {
	svc, _, mock := newChatFixture(t)

	mock.ExpectGetDel("chat_ticket:spent").RedisNil()

	_, err := svc.RedeemTicket(context.Background(), "spent", "booking-1")
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestChatTicketWrongBooking(t *testing.T) {
	svc, _, mock := newChatFixture(t)

	mock.ExpectGetDel("chat_ticket:abc").SetVal("user-1|booking-2")

	_, err := svc.RedeemTicket(context.Background(), "abc", "booking-1")
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestChatTicketForbiddenForStranger(t *testing.T) {
	svc, _, _ := newChatFixture(t)

	_, err := svc.IssueTicket(context.Background(), "booking-1", "stranger")
	assert.ErrorIs(t, err, status.ErrForbidden)
}
