package handlers

import (
	"errors"
	"net/http"

	"gatepass/internal/status"

	"github.com/pocketbase/pocketbase/apis"
)

// apiError maps service errors onto HTTP responses. Idempotent repeats
// (already registered, already checked in) never reach here; those are
// 200s with a flag in the body.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrEventNotFound),
		errors.Is(err, status.ErrPassNotFound),
		errors.Is(err, status.ErrRegistrationNotFound),
		errors.Is(err, status.ErrOrderNotFound),
		errors.Is(err, status.ErrTicketNotFound),
		errors.Is(err, status.ErrIntentNotFound):
		return apis.NewNotFoundError(err.Error(), err)

	case errors.Is(err, status.ErrInvalidCode):
		return apis.NewNotFoundError("Unknown code", err)

	case errors.Is(err, status.ErrWrongEvent):
		return apis.NewApiError(http.StatusConflict, "Code belongs to a different event. Select the correct event and scan again.", err)

	case errors.Is(err, status.ErrCapacityExceeded):
		return apis.NewApiError(http.StatusConflict, "This pass is sold out", err)

	case errors.Is(err, status.ErrPolicyViolation):
		return apis.NewForbiddenError("This event restricts who can register", err)

	case errors.Is(err, status.ErrPaymentUnverified):
		return apis.NewApiError(http.StatusPaymentRequired, "Payment has not been verified", err)

	case errors.Is(err, status.ErrForbidden):
		return apis.NewForbiddenError("Access denied", err)

	default:
		return apis.NewBadRequestError("Request failed", err)
	}
}
