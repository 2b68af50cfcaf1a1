package services

import (
	"context"
	"fmt"
	"time"

	"gatepass/internal/status"
	"gatepass/internal/store"
	"gatepass/models"

	"github.com/redis/go-redis/v9"
)

// RosterService serves the organizer-facing attendance views. Entries
// come from the store, but check-in fields are overlaid from the live
// Redis state so the roster and the gate never disagree.
type RosterService struct {
	Redis *redis.Client
	Store store.Store
}

func NewRosterService(redisClient *redis.Client, st store.Store) *RosterService {
	return &RosterService{
		Redis: redisClient,
		Store: st,
	}
}

// Authorize allows the event's organizer and holders of a live operator
// grant; everyone else gets status.ErrForbidden.
func (s *RosterService) Authorize(ctx context.Context, eventID, userID string) error {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if event.OrganizerID == userID {
		return nil
	}

	granted, err := s.Redis.Exists(ctx, fmt.Sprintf("operator:%s:%s", eventID, userID)).Result()
	if err != nil {
		return fmt.Errorf("check operator grant: %w", err)
	}
	if granted > 0 {
		return nil
	}

	return status.ErrForbidden
}

// List returns the event roster with live check-in state.
func (s *RosterService) List(ctx context.Context, eventID, userID string) ([]models.RosterEntry, error) {
	if err := s.Authorize(ctx, eventID, userID); err != nil {
		return nil, err
	}

	entries, err := s.Store.ListRoster(ctx, eventID)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].TicketID == "" {
			continue
		}
		s.overlayLiveState(ctx, &entries[i])
	}

	return entries, nil
}

// Stats returns the live tally for an event. Pending is derived, so
// checked_in + pending always equals total.
func (s *RosterService) Stats(ctx context.Context, eventID, userID string) (*models.EventStats, error) {
	if err := s.Authorize(ctx, eventID, userID); err != nil {
		return nil, err
	}

	vals, err := s.Redis.MGet(ctx,
		fmt.Sprintf("checkin:count:%s", eventID),
		fmt.Sprintf("ticket:total:%s", eventID),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	checkedIn := parseCounter(vals[0])
	total := parseCounter(vals[1])

	// counters lost to a Redis flush fall back to the store projection
	if total == 0 {
		if total, err = s.Store.CountTickets(ctx, eventID); err != nil {
			return nil, err
		}
		if checkedIn, err = s.Store.CountCheckedIn(ctx, eventID); err != nil {
			return nil, err
		}
	}

	return &models.EventStats{
		Total:     total,
		CheckedIn: checkedIn,
		Pending:   total - checkedIn,
	}, nil
}

// GuestList is the unauthenticated view: attendee names only, and only
// for events that opted in.
func (s *RosterService) GuestList(ctx context.Context, eventID string) ([]string, error) {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.GuestListPublic {
		return nil, status.ErrForbidden
	}

	entries, err := s.Store.ListRoster(ctx, eventID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Status == models.RegistrationConfirmed {
			names = append(names, entry.AttendeeName)
		}
	}
	return names, nil
}

func (s *RosterService) overlayLiveState(ctx context.Context, entry *models.RosterEntry) {
	state, err := s.Redis.HGetAll(ctx, fmt.Sprintf("checkin:state:%s", entry.TicketID)).Result()
	if err != nil || len(state) == 0 {
		return
	}

	entry.CheckIn = models.CheckInState{
		CheckedIn: state["checked_in"] == "1",
		Via:       state["via"],
	}
	if at, err := time.Parse(time.RFC3339, state["checked_in_at"]); err == nil {
		entry.CheckIn.CheckedInAt = &at
	}
	if at, err := time.Parse(time.RFC3339, state["checked_out_at"]); err == nil {
		entry.CheckIn.CheckedOutAt = &at
	}
}
