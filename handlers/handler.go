package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"legal-consult/internal/status"
)

// requireAuth extracts the authenticated user id or fails the request.
func requireAuth(e *core.RequestEvent) (string, error) {
	if e.Auth == nil {
		return "", apis.NewUnauthorizedError("Authentication required", nil)
	}
	return e.Auth.Id, nil
}

// apiError translates service sentinel errors into HTTP responses. Anything
// unrecognized becomes a 500 with the cause kept server-side.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrDraftNotFound):
		return apis.NewNotFoundError("Draft not found or expired", err)
	case errors.Is(err, status.ErrOrderNotFound):
		return apis.NewNotFoundError("Order not found", err)
	case errors.Is(err, status.ErrBookingNotFound):
		return apis.NewNotFoundError("Booking not found", err)
	case errors.Is(err, status.ErrSessionNotFound):
		return apis.NewNotFoundError("Consultation not found", err)
	case errors.Is(err, status.ErrLawyerNotFound):
		return apis.NewNotFoundError("Lawyer not found", err)
	case errors.Is(err, status.ErrForbidden):
		return apis.NewForbiddenError("Not allowed", err)
	case errors.Is(err, status.ErrInvalidState):
		return apis.NewBadRequestError("Invalid state for this operation", err)
	case errors.Is(err, status.ErrInvalidSignature):
		return apis.NewBadRequestError("Payment signature verification failed", nil)
	case errors.Is(err, status.ErrAlreadyConfirmed):
		return apis.NewApiError(http.StatusConflict, "Payment already confirmed", err)
	case errors.Is(err, status.ErrGatewayUnavailable):
		return apis.NewApiError(http.StatusBadGateway, "Payment gateway unavailable", err)
	}
	return apis.NewInternalServerError("Something went wrong", err)
}

// pagination reads offset/limit query params with sane bounds.
func pagination(e *core.RequestEvent) (offset, limit int) {
	limit = 50
	if v := e.Request.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := e.Request.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}
