package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"legal-consult/internal/services/payment"
	"legal-consult/monitoring"
	"legal-consult/services"
)

type PaymentHandler struct {
	bookings *services.BookingService
	monitor  *monitoring.Monitor
}

func NewPaymentHandler(bookings *services.BookingService, monitor *monitoring.Monitor) *PaymentHandler {
	return &PaymentHandler{bookings: bookings, monitor: monitor}
}

// CreateIntent - Create an external payment order for a draft
func (h *PaymentHandler) CreateIntent(e *core.RequestEvent) error {
	userID, err := requireAuth(e)
	if err != nil {
		return err
	}

	intent, err := h.bookings.CreatePaymentIntent(e.Request.Context(), e.Request.PathValue("draftId"), userID)
	if err != nil {
		h.trackPayment("create_order", err)
		return apiError(err)
	}
	h.trackPayment("create_order", nil)

	return e.JSON(http.StatusCreated, intent)
}

// Confirm - Verify a gateway callback and create the booking
func (h *PaymentHandler) Confirm(e *core.RequestEvent) error {
	if _, err := requireAuth(e); err != nil {
		return err
	}

	var body struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if body.OrderID == "" || body.PaymentID == "" || body.Signature == "" {
		return apis.NewBadRequestError("order_id, payment_id and signature are required", nil)
	}

	booking, err := h.confirm(e.Request.Context(), body.OrderID, body.PaymentID, body.Signature)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, booking)
}

func (h *PaymentHandler) confirm(ctx context.Context, orderID, paymentID, signature string) (any, error) {
	started := time.Now()
	booking, err := h.bookings.Confirm(ctx, orderID, paymentID, signature)
	if h.monitor != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.monitor.TrackConfirmation(outcome, time.Since(started))
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ConsumeCaptures drains asynchronous capture notifications from the
// gateway's channel and runs them through the same confirmation path as the
// client callback. Whichever side arrives second loses the idempotency race
// harmlessly.
func (h *PaymentHandler) ConsumeCaptures(ctx context.Context, captures <-chan *payment.Capture) {
	for {
		select {
		case <-ctx.Done():
			return
		case capture, ok := <-captures:
			if !ok || capture == nil {
				return
			}
			if _, err := h.confirm(ctx, capture.OrderID, capture.PaymentID, capture.Signature); err != nil {
				log.Printf("Capture notification for order %s not applied: %v", capture.OrderID, err)
			}
		}
	}
}

func (h *PaymentHandler) trackPayment(operation string, err error) {
	if h.monitor == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.monitor.TrackPaymentOperation(operation, outcome)
}
