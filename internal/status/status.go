package status

import "errors"

var (
	ErrDraftNotFound   = errors.New("draft: not found or expired")
	ErrOrderNotFound   = errors.New("order: not found or expired")
	ErrBookingNotFound = errors.New("booking: not found")
	ErrSessionNotFound = errors.New("session: not found")
	ErrLawyerNotFound  = errors.New("lawyer: not found")

	ErrForbidden        = errors.New("actor is not a party to this resource")
	ErrInvalidState     = errors.New("transition not allowed from current status")
	ErrInvalidSignature = errors.New("payment: signature verification failed")
	ErrAlreadyConfirmed = errors.New("payment: order already confirmed")

	ErrGatewayUnavailable = errors.New("gateway: temporarily unavailable")
)
