package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"legal-consult/models"
	"legal-consult/services"
)

type BookingHandler struct {
	bookings *services.BookingService
}

func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// CreateDraft - Start a new booking draft with an AI case summary
func (h *BookingHandler) CreateDraft(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	var in services.CreateDraftInput
	if err := e.BindBody(&in); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if in.LawyerID == "" || in.CaseDescription == "" {
		return apis.NewBadRequestError("lawyer_id and case_description are required", nil)
	}

	draft, err := h.bookings.CreateDraft(e.Request.Context(), userID, in)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, draft)
}

// RegenerateSummary - Replace a draft's case text and re-summarize it
func (h *BookingHandler) RegenerateSummary(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	var body struct {
		CaseDescription string `json:"case_description"`
	}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if body.CaseDescription == "" {
		return apis.NewBadRequestError("case_description is required", nil)
	}

	draft, err := h.bookings.RegenerateSummary(e.Request.Context(), e.Request.PathValue("draftId"), userID, body.CaseDescription)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, draft)
}

// ListBookings - List the caller's bookings, newest first
func (h *BookingHandler) ListBookings(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	statusFilter := e.Request.URL.Query().Get("status")
	if statusFilter != "" && !models.ValidStatus(statusFilter) {
		return apis.NewBadRequestError("Unknown status filter", nil)
	}
	offset, limit := pagination(e)

	bookings, err := h.bookings.ListBookings(e.Request.Context(), userID, statusFilter, offset, limit)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"bookings": bookings,
		"offset":   offset,
		"limit":    limit,
	})
}

// GetBooking - Read one booking, parties only
func (h *BookingHandler) GetBooking(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	booking, err := h.bookings.GetBooking(e.Request.Context(), e.Request.PathValue("bookingId"), userID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, booking)
}

// UpdateStatus - Apply one booking state machine transition
func (h *BookingHandler) UpdateStatus(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	booking, err := h.bookings.TransitionStatus(
		e.Request.Context(),
		e.Request.PathValue("bookingId"),
		userID,
		models.BookingStatus(body.Status),
		body.Reason,
	)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, booking)
}
