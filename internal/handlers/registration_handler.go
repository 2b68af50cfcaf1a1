package handlers

import (
	"net/http"

	"gatepass/internal/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type RegistrationHandler struct {
	app           *pocketbase.PocketBase
	registrations *services.RegistrationService
	intents       *services.IntentService
}

func NewRegistrationHandler(app *pocketbase.PocketBase, registrations *services.RegistrationService, intents *services.IntentService) *RegistrationHandler {
	return &RegistrationHandler{
		app:           app,
		registrations: registrations,
		intents:       intents,
	}
}

// Register - register the authenticated attendee for an event
func (h *RegistrationHandler) Register(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID string         `json:"event_id"`
		PassID  string         `json:"pass_id"`
		Survey  map[string]any `json:"survey"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}

	outcome, err := h.registrations.Register(e.Request.Context(), h.attendee(e), req.EventID, req.PassID, req.Survey)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, outcome)
}

// MyRegistration - the attendee's own registration and ticket for an event
func (h *RegistrationHandler) MyRegistration(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	outcome, err := h.registrations.MyRegistration(e.Request.Context(), e.Auth.Id, eventID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, outcome)
}

// SaveIntent - park a registration attempt made before sign-in
func (h *RegistrationHandler) SaveIntent(e *core.RequestEvent) error {
	var req struct {
		EventID string `json:"event_id"`
		PassID  string `json:"pass_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}

	token, err := h.intents.Save(e.Request.Context(), req.EventID, req.PassID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"token": token})
}

// ClaimIntent - replay a parked registration now that a session exists
func (h *RegistrationHandler) ClaimIntent(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	intent, err := h.intents.Claim(e.Request.Context(), req.Token)
	if err != nil {
		return apiError(err)
	}

	outcome, err := h.registrations.Register(e.Request.Context(), h.attendee(e), intent.EventID, intent.PassID, nil)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, outcome)
}

func (h *RegistrationHandler) attendee(e *core.RequestEvent) services.Attendee {
	return services.Attendee{
		ID:     e.Auth.Id,
		Name:   e.Auth.GetString("name"),
		Email:  e.Auth.GetString("email"),
		Gender: e.Auth.GetString("gender"),
	}
}
