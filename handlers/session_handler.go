package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"legal-consult/services"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Start - Join the live consultation channel for a booking
func (h *SessionHandler) Start(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	handle, err := h.sessions.StartSession(e.Request.Context(), e.Request.PathValue("bookingId"), userID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, handle)
}

// End - Close the consultation and complete its booking
func (h *SessionHandler) End(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	sess, err := h.sessions.EndSession(e.Request.Context(), e.Request.PathValue("sessionId"), userID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, sess)
}
