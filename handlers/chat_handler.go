package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"legal-consult/services"
)

type ChatHandler struct {
	chat     *services.ChatService
	upgrader websocket.Upgrader
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// IssueTicket - Issue a single-use websocket attach ticket
//
// Browsers cannot send Authorization headers on websocket upgrades, so the
// identity check happens here on the authenticated REST surface and the
// upgrade presents only the short-lived ticket.
func (h *ChatHandler) IssueTicket(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	ticket, err := h.chat.IssueTicket(e.Request.Context(), e.Request.PathValue("bookingId"), userID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, map[string]string{"ticket": ticket})
}

// History - Read the persisted message log for a booking
func (h *ChatHandler) History(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	offset, limit := pagination(e)
	messages, err := h.chat.History(e.Request.Context(), e.Request.PathValue("bookingId"), userID, offset, limit)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"messages": messages})
}

// Serve - Upgrade to a websocket and join the booking's chat room
func (h *ChatHandler) Serve(e *core.RequestEvent) error {
	bookingID := e.Request.PathValue("bookingId")
	ticket := e.Request.URL.Query().Get("ticket")
	if ticket == "" {
		return apis.NewUnauthorizedError("Chat ticket required", nil)
	}

	userID, err := h.chat.RedeemTicket(e.Request.Context(), ticket, bookingID)
	if err != nil {
		return apiError(err)
	}

	conn, err := h.upgrader.Upgrade(e.Response, e.Request, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		return nil
	}

	member, err := h.chat.Attach(e.Request.Context(), conn, bookingID, userID)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": "not allowed"})
		conn.Close()
		return nil
	}
	defer h.chat.Detach(member)

	for {
		var inbound struct {
			Content string `json:"content"`
		}
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Chat connection for booking %s dropped: %v", bookingID, err)
			}
			return nil
		}
		if inbound.Content == "" {
			continue
		}

		if _, err := h.chat.Send(e.Request.Context(), bookingID, userID, inbound.Content); err != nil {
			log.Printf("Chat message for booking %s not persisted: %v", bookingID, err)
		}
	}
}
