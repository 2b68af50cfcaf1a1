package handlers

import (
	"net/http"

	"gatepass/internal/services"
	"gatepass/internal/store"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	app      *pocketbase.PocketBase
	payments *services.PaymentService
	store    store.Store

	devMode bool
}

func NewPaymentHandler(app *pocketbase.PocketBase, payments *services.PaymentService, st store.Store, devMode bool) *PaymentHandler {
	return &PaymentHandler{
		app:      app,
		payments: payments,
		store:    st,
		devMode:  devMode,
	}
}

// Webhook - gateway settlement callback. The bill number is only a
// pointer: verification still goes back to the gateway, so an attacker
// posting here cannot mint a ticket.
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	var req struct {
		BillNumber string `json:"billNumber"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.BillNumber == "" {
		return apis.NewBadRequestError("billNumber is required", nil)
	}

	ticket, err := h.payments.HandleVerification(e.Request.Context(), req.BillNumber)
	if err != nil {
		return apiError(err)
	}

	resp := map[string]any{"verified": true}
	if ticket != nil {
		resp["ticket_id"] = ticket.ID
	}
	return e.JSON(http.StatusOK, resp)
}

// OrderStatus - current payment order for the attendee's registration
func (h *PaymentHandler) OrderStatus(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	registrationID := e.Request.PathValue("registrationId")
	if registrationID == "" {
		return apis.NewBadRequestError("Registration ID required", nil)
	}

	reg, err := h.store.GetRegistration(e.Request.Context(), registrationID)
	if err != nil {
		return apiError(err)
	}
	if reg.AttendeeID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	order, err := h.payments.OrderStatus(e.Request.Context(), registrationID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, order)
}

// SimulateVerification - development helper that forces a verification
// pass for an order. Disabled outside dev mode.
func (h *PaymentHandler) SimulateVerification(e *core.RequestEvent) error {
	if !h.devMode {
		return apis.NewNotFoundError("Not found", nil)
	}

	var req struct {
		GatewayRef string `json:"gateway_ref"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.payments.HandleVerification(e.Request.Context(), req.GatewayRef)
	if err != nil {
		return apiError(err)
	}

	resp := map[string]any{"verified": true}
	if ticket != nil {
		resp["ticket_id"] = ticket.ID
	}
	return e.JSON(http.StatusOK, resp)
}
