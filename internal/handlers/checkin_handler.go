package handlers

import (
	"net/http"

	"gatepass/internal/services"
	"gatepass/security"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type CheckInHandler struct {
	app       *pocketbase.PocketBase
	checkins  *services.CheckInService
	operators *services.OperatorService
	throttle  *security.ScanThrottle
}

func NewCheckInHandler(app *pocketbase.PocketBase, checkins *services.CheckInService, operators *services.OperatorService, throttle *security.ScanThrottle) *CheckInHandler {
	return &CheckInHandler{
		app:       app,
		checkins:  checkins,
		operators: operators,
		throttle:  throttle,
	}
}

// Scan - check a ticket in by its QR code
func (h *CheckInHandler) Scan(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID string `json:"event_id"`
		Code    string `json:"code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" || req.Code == "" {
		return apis.NewBadRequestError("event_id and code are required", nil)
	}

	ctx := e.Request.Context()

	if !h.throttle.Allow(ctx, e.Auth.Id) {
		return apis.NewApiError(http.StatusTooManyRequests, "Scanning too fast. Slow down.", nil)
	}

	op, err := h.operators.Scope(ctx, req.EventID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}

	result, err := h.checkins.Scan(ctx, req.Code, op)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// Manual - check a ticket in or out from the roster
func (h *CheckInHandler) Manual(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ticketID := e.Request.PathValue("ticketId")
	if ticketID == "" {
		return apis.NewBadRequestError("Ticket ID required", nil)
	}

	var req struct {
		EventID string `json:"event_id"`
		Action  string `json:"action"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Action != "checkin" && req.Action != "checkout" {
		return apis.NewBadRequestError("action must be checkin or checkout", nil)
	}

	ctx := e.Request.Context()

	op, err := h.operators.Scope(ctx, req.EventID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}

	result, err := h.checkins.ManualSet(ctx, ticketID, op, req.Action)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// ClaimOperator - exchange the event's scanner PIN for a gate grant
func (h *CheckInHandler) ClaimOperator(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID string `json:"event_id"`
		PIN     string `json:"pin"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.operators.Claim(e.Request.Context(), req.EventID, e.Auth.Id, req.PIN); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"granted": true, "event_id": req.EventID})
}
