package services

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"legal-consult/internal/status"
	"legal-consult/models"
)

// ChannelClaims is what the media service validates before letting a
// participant publish on a channel. Expiry lives in the token itself; the
// core never tracks token lifetimes.
type ChannelClaims struct {
	Channel string `json:"channel"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// SessionService gates live consultation sessions on booking status and
// mints the short-lived channel tokens both parties join with.
type SessionService struct {
	store       Store
	notify      Notifier
	tokenSecret []byte
	tokenTTL    time.Duration
}

func NewSessionService(store Store, notify Notifier, tokenSecret string, tokenTTL time.Duration) *SessionService {
	return &SessionService{
		store:       store,
		notify:      notify,
		tokenSecret: []byte(tokenSecret),
		tokenTTL:    tokenTTL,
	}
}

func (s *SessionService) roleFor(ctx context.Context, b *models.Booking, actorID string) (models.Role, bool) {
	if b.UserID == actorID {
		return models.RoleRequester, true
	}
	lawyerID, err := s.store.LawyerIDForUser(ctx, actorID)
	if err == nil && lawyerID != "" && lawyerID == b.LawyerID {
		return models.RoleLawyer, true
	}
	return "", false
}

// StartSession admits a booking participant onto the live channel. The
// first call creates the session record; later calls while the session is
// active reuse the channel and just mint a fresh token. The channel name is
// derived from the booking id so both parties converge without a lookup.
func (s *SessionService) StartSession(ctx context.Context, bookingID, actorID string) (*models.SessionHandle, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	role, ok := s.roleFor(ctx, booking, actorID)
	if !ok {
		return nil, status.ErrForbidden
	}

	if booking.Status != models.StatusAccepted && booking.Status != models.StatusRescheduled {
		return nil, status.ErrInvalidState
	}

	sess, err := s.store.SessionForBooking(ctx, bookingID)
	if errors.Is(err, status.ErrSessionNotFound) {
		now := time.Now().UTC()
		sess, err = s.store.CreateSession(ctx, &models.Session{
			BookingID:   bookingID,
			ChannelName: "booking_" + bookingID,
			Status:      "active",
			StartedAt:   &now,
		})
		// Two racing first calls both miss the lookup; the unique booking
		// index rejects the loser, which then joins the winner's session.
		if isUniqueViolation(err) {
			sess, err = s.store.SessionForBooking(ctx, bookingID)
		}
	}
	if err != nil {
		return nil, err
	}
	if sess.Status != "active" {
		return nil, status.ErrInvalidState
	}

	token, err := s.mintToken(sess.ChannelName, actorID, role)
	if err != nil {
		return nil, err
	}

	s.notifyCounterparty(ctx, booking, role, map[string]any{
		"type":       "session_started",
		"booking_id": bookingID,
		"channel":    sess.ChannelName,
	})

	return &models.SessionHandle{
		SessionID:   sess.ID,
		ChannelName: sess.ChannelName,
		Token:       token,
	}, nil
}

// EndSession closes the live session and cascades the booking to
// completed. This is the only path by which a booking completes.
func (s *SessionService) EndSession(ctx context.Context, sessionID, actorID string) (*models.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	booking, err := s.store.GetBooking(ctx, sess.BookingID)
	if err != nil {
		return nil, err
	}

	if _, ok := s.roleFor(ctx, booking, actorID); !ok {
		return nil, status.ErrForbidden
	}
	if sess.Status != "active" {
		return nil, status.ErrInvalidState
	}

	now := time.Now().UTC()
	sess.Status = "completed"
	sess.EndedAt = &now
	if sess.StartedAt != nil {
		sess.Duration = int64(now.Sub(*sess.StartedAt).Seconds())
	}

	// A booking cancelled while its session was live stays cancelled;
	// terminal states are never overwritten. Only the consultation closes.
	if booking.Status.IsTerminal() {
		if err := s.store.CloseSession(ctx, sess); err != nil {
			return nil, err
		}
		return sess, nil
	}

	booking.Status = models.StatusCompleted
	booking.CompletedAt = &now

	if err := s.store.CompleteSession(ctx, sess, booking, actorID); err != nil {
		return nil, err
	}

	return sess, nil
}

func (s *SessionService) notifyCounterparty(ctx context.Context, b *models.Booking, startedBy models.Role, message map[string]any) {
	if s.notify == nil {
		return
	}
	if startedBy == models.RoleLawyer {
		s.notify.NotifyUser(b.UserID, message)
		return
	}
	lawyer, err := s.store.FindLawyer(ctx, b.LawyerID)
	if err == nil {
		s.notify.NotifyUser(lawyer.UserID, message)
	}
}

func (s *SessionService) mintToken(channel, actorID string, role models.Role) (string, error) {
	claims := ChannelClaims{
		Channel: channel,
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.tokenSecret)
}
