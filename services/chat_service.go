package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"legal-consult/internal/status"
	"legal-consult/models"
	"legal-consult/utils"
)

const chatTicketPrefix = "chat_ticket:"

// ChatConn is the transport handle the hub writes to. *websocket.Conn
// satisfies it.
type ChatConn interface {
	WriteJSON(v any) error
	Close() error
}

// Member is one attached connection in a room. Each member owns a buffered
// outbound queue drained by its own writer goroutine, so one slow peer
// never stalls the others.
type Member struct {
	conn      ChatConn
	bookingID string
	userID    string
	send      chan *models.ChatMessage
	closeOnce sync.Once
}

func (m *Member) close() {
	m.closeOnce.Do(func() {
		close(m.send)
	})
}

// ChatService owns the per-booking connection registry and the durable
// message log. The registry is exposed only through Attach/Detach/Send;
// nothing outside ever iterates rooms directly.
type ChatService struct {
	store Store
	redis *redis.Client

	mu    sync.RWMutex
	rooms map[string]map[*Member]struct{}

	sendBuffer int
}

func NewChatService(store Store, redisClient *redis.Client, sendBuffer int) *ChatService {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &ChatService{
		store:      store,
		redis:      redisClient,
		rooms:      make(map[string]map[*Member]struct{}),
		sendBuffer: sendBuffer,
	}
}

func (s *ChatService) isParticipant(ctx context.Context, bookingID, actorID string) (bool, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if booking.UserID == actorID {
		return true, nil
	}
	lawyerID, err := s.store.LawyerIDForUser(ctx, actorID)
	if err != nil {
		return false, err
	}
	return lawyerID != "" && lawyerID == booking.LawyerID, nil
}

// IssueTicket hands an authenticated participant a single-use short-lived
// attach ticket. Identity is resolved here, over the normal authenticated
// surface, before any websocket exists.
func (s *ChatService) IssueTicket(ctx context.Context, bookingID, actorID string) (string, error) {
	ok, err := s.isParticipant(ctx, bookingID, actorID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", status.ErrForbidden
	}

	code, err := utils.GenerateCode(16)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, chatTicketPrefix+code, actorID+"|"+bookingID, 30*time.Second).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// RedeemTicket consumes an attach ticket and returns the identity it was
// issued to. GETDEL makes the ticket single-use even under concurrent
// redemption attempts.
func (s *ChatService) RedeemTicket(ctx context.Context, code, bookingID string) (string, error) {
	val, err := s.redis.GetDel(ctx, chatTicketPrefix+code).Result()
	if err == redis.Nil {
		return "", status.ErrForbidden
	} else if err != nil {
		return "", err
	}

	actorID, ticketBooking, _ := strings.Cut(val, "|")
	if ticketBooking != bookingID {
		return "", status.ErrForbidden
	}
	return actorID, nil
}

// Attach registers an authenticated connection under the booking's room.
// The identity must already be resolved; Attach only re-checks the
// participant relationship against current booking state.
func (s *ChatService) Attach(ctx context.Context, conn ChatConn, bookingID, actorID string) (*Member, error) {
	ok, err := s.isParticipant(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.ErrForbidden
	}

	m := &Member{
		conn:      conn,
		bookingID: bookingID,
		userID:    actorID,
		send:      make(chan *models.ChatMessage, s.sendBuffer),
	}

	s.mu.Lock()
	room, exists := s.rooms[bookingID]
	if !exists {
		room = make(map[*Member]struct{})
		s.rooms[bookingID] = room
	}
	room[m] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(m)

	return m, nil
}

// Detach removes the connection from its room and reclaims the room entry
// when it was the last one.
func (s *ChatService) Detach(m *Member) {
	s.mu.Lock()
	if room, exists := s.rooms[m.bookingID]; exists {
		if _, attached := room[m]; attached {
			delete(room, m)
			if len(room) == 0 {
				delete(s.rooms, m.bookingID)
			}
			m.close()
		}
	}
	s.mu.Unlock()
}

// writeLoop drains a member's outbound queue onto its transport. A write
// failure kills only this connection; the member is detached, not retried.
func (s *ChatService) writeLoop(m *Member) {
	for msg := range m.send {
		if err := m.conn.WriteJSON(msg); err != nil {
			log.Printf("Chat write to %s failed, detaching: %v", m.userID, err)
			s.Detach(m)
			break
		}
	}
	m.conn.Close()
}

// Send broadcasts a message to every current room member (sender echo
// included, as delivery confirmation) and persists it. Broadcast and
// persistence are independent: an empty room still persists, and a dead
// peer never blocks the rest.
func (s *ChatService) Send(ctx context.Context, bookingID, senderID, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		BookingID: bookingID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	s.broadcast(bookingID, msg)

	saved, err := s.store.SaveMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("chat: persist message: %w", err)
	}
	return saved, nil
}

// broadcast enqueues onto every member under the read lock. The enqueue is
// a non-blocking select, so holding the lock is cheap, and Detach's close
// of the send channel (under the write lock) can never interleave with an
// enqueue. A member whose queue is full is scheduled for detach rather
// than waited on.
func (s *ChatService) broadcast(bookingID string, msg *models.ChatMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for m := range s.rooms[bookingID] {
		select {
		case m.send <- msg:
		default:
			log.Printf("Chat queue full for %s, detaching", m.userID)
			go s.Detach(m)
		}
	}
}

// History returns the persisted message log for a booking, oldest first.
func (s *ChatService) History(ctx context.Context, bookingID, actorID string, offset, limit int) ([]*models.ChatMessage, error) {
	ok, err := s.isParticipant(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.ErrForbidden
	}
	return s.store.MessageHistory(ctx, bookingID, offset, limit)
}

// RoomSize reports the current number of attached connections. Metrics use.
func (s *ChatService) RoomSize(bookingID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[bookingID])
}

// RoomCount reports the number of rooms with at least one connection.
func (s *ChatService) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// ConnectionCount reports the total number of attached connections.
func (s *ChatService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, room := range s.rooms {
		total += len(room)
	}
	return total
}
