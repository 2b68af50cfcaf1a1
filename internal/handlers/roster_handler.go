package handlers

import (
	"net/http"

	"gatepass/internal/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type RosterHandler struct {
	app     *pocketbase.PocketBase
	rosters *services.RosterService
}

func NewRosterHandler(app *pocketbase.PocketBase, rosters *services.RosterService) *RosterHandler {
	return &RosterHandler{
		app:     app,
		rosters: rosters,
	}
}

// Roster - full attendance list with live check-in state
func (h *RosterHandler) Roster(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	entries, err := h.rosters.List(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"event_id": eventID, "roster": entries})
}

// Stats - live tally for an event
func (h *RosterHandler) Stats(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	stats, err := h.rosters.Stats(e.Request.Context(), eventID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, stats)
}

// GuestList - public names-only view for events that opted in
func (h *RosterHandler) GuestList(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	names, err := h.rosters.GuestList(e.Request.Context(), eventID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"event_id": eventID, "guests": names})
}
