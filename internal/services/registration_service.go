package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gatepass/internal/status"
	"gatepass/internal/store"
	"gatepass/models"
	"gatepass/monitoring"

	"github.com/redis/go-redis/v9"
)

// reserveCapacityScript admits one more registration for a pass unless
// the reservation counter already reached capacity. Checking and
// incrementing happen in one atomic section so concurrent registrations
// cannot overshoot.
const reserveCapacityScript = `
local reserved = tonumber(redis.call('GET', KEYS[1]) or '0')
local cap = tonumber(ARGV[1])
if reserved >= cap then
	return -1
end
return redis.call('INCR', KEYS[1])
`

// Attendee carries the profile fields registration decisions depend on.
// Handlers build it from the authenticated user record.
type Attendee struct {
	ID     string
	Name   string
	Email  string
	Gender string
}

// RegistrationOutcome is what an attendee gets back from Register. For a
// free pass the ticket and its raw scan code are present immediately;
// for a priced pass the order and its payment QR are. Already marks the
// idempotent repeat of a registration that already went through.
type RegistrationOutcome struct {
	Registration *models.Registration `json:"registration"`
	Already      bool                 `json:"already"`

	Ticket  *models.Ticket `json:"ticket,omitempty"`
	RawCode string         `json:"scan_code,omitempty"`

	Order     *models.PaymentOrder `json:"order,omitempty"`
	PaymentQR string               `json:"payment_qr,omitempty"`
}

// RegistrationService runs the register flow: policy gate, capacity
// reservation, registration write, then either immediate issuance or an
// opened payment order.
type RegistrationService struct {
	Redis    *redis.Client
	Store    store.Store
	Tickets  *TicketService
	Payments *PaymentService
	Monitor  *monitoring.Monitor
}

func NewRegistrationService(redisClient *redis.Client, st store.Store, tickets *TicketService, payments *PaymentService, monitor *monitoring.Monitor) *RegistrationService {
	return &RegistrationService{
		Redis:    redisClient,
		Store:    st,
		Tickets:  tickets,
		Payments: payments,
		Monitor:  monitor,
	}
}

// Register registers attendee for an event. Validation runs strictly
// before any write: the event must exist, a pass when given must belong
// to it, and a women-only event rejects non-eligible attendees with
// status.ErrPolicyViolation. Events with no passes take pass-less
// registrations, which follow the free path. A repeat by an attendee
// with a live registration resumes it with Already set: a confirmed one
// returns the existing ticket, a pending one its open order.
func (s *RegistrationService) Register(ctx context.Context, attendee Attendee, eventID, passID string, survey map[string]any) (*RegistrationOutcome, error) {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var pass *models.Pass
	if passID != "" {
		pass, err = s.Store.GetPass(ctx, passID)
		if err != nil {
			return nil, err
		}
		if pass.EventID != eventID {
			return nil, status.ErrPassNotFound
		}
	}

	if event.WomenOnly && !strings.EqualFold(attendee.Gender, "female") {
		return nil, status.ErrPolicyViolation
	}

	if existing, err := s.Store.FindActiveRegistration(ctx, eventID, attendee.ID); err == nil {
		return s.resume(ctx, existing)
	} else if !errors.Is(err, status.ErrRegistrationNotFound) {
		return nil, err
	}

	reserved, err := s.reserveCapacity(ctx, pass)
	if err != nil {
		return nil, err
	}

	free := pass == nil || pass.Free()

	reg := &models.Registration{
		EventID:    eventID,
		AttendeeID: attendee.ID,
		PassID:     passID,
		Status:     models.RegistrationPendingPayment,
		Survey:     survey,
	}
	if free {
		reg.Status = models.RegistrationConfirmed
	}

	if err := s.Store.CreateRegistration(ctx, reg); err != nil {
		s.releaseCapacity(ctx, pass, reserved)
		return nil, err
	}

	if s.Monitor != nil {
		s.Monitor.RecordRegistration(reg.Status)
	}

	if free {
		ticket, rawCode, err := s.Tickets.Issue(ctx, reg.ID)
		if err != nil {
			return nil, err
		}
		return &RegistrationOutcome{
			Registration: reg,
			Ticket:       ticket,
			RawCode:      rawCode,
		}, nil
	}

	order, paymentQR, err := s.Payments.OpenOrder(ctx, reg, pass)
	if err != nil {
		// the attendee never saw a QR; fail the registration and give
		// the reserved slot back
		if ferr := s.Store.SetRegistrationStatus(ctx, reg.ID, models.RegistrationFailed); ferr != nil {
			return nil, fmt.Errorf("open order: %w (registration %s left pending)", err, reg.ID)
		}
		s.releaseCapacity(ctx, pass, reserved)
		return nil, err
	}

	return &RegistrationOutcome{
		Registration: reg,
		Order:        order,
		PaymentQR:    paymentQR,
	}, nil
}

// resume replays a registration that already went through. A confirmed
// one carries its ticket; when the ticket is missing because an earlier
// issue died between the registration write and the mint, the mint runs
// now instead of leaving the attendee confirmed but ticketless. A
// pending one carries its open order so the attendee can still pay.
func (s *RegistrationService) resume(ctx context.Context, reg *models.Registration) (*RegistrationOutcome, error) {
	outcome := &RegistrationOutcome{Registration: reg, Already: true}

	switch reg.Status {
	case models.RegistrationConfirmed:
		ticket, err := s.Store.GetTicketByRegistration(ctx, reg.ID)
		if err == nil {
			outcome.Ticket = ticket
			return outcome, nil
		}
		if !errors.Is(err, status.ErrTicketNotFound) {
			return nil, err
		}

		ticket, rawCode, err := s.Tickets.Issue(ctx, reg.ID)
		if err != nil {
			return nil, err
		}
		outcome.Ticket = ticket
		outcome.RawCode = rawCode

	case models.RegistrationPendingPayment:
		if order, err := s.Store.GetOrderByRegistration(ctx, reg.ID); err == nil {
			outcome.Order = order
		}
	}

	return outcome, nil
}

// MyRegistration returns the attendee's live registration for an event
// along with its ticket, or the open order while payment is pending.
func (s *RegistrationService) MyRegistration(ctx context.Context, attendeeID, eventID string) (*RegistrationOutcome, error) {
	reg, err := s.Store.FindActiveRegistration(ctx, eventID, attendeeID)
	if err != nil {
		return nil, err
	}

	outcome := &RegistrationOutcome{Registration: reg}
	if ticket, err := s.Store.GetTicketByRegistration(ctx, reg.ID); err == nil {
		outcome.Ticket = ticket
	}
	if reg.Status == models.RegistrationPendingPayment {
		if order, err := s.Store.GetOrderByRegistration(ctx, reg.ID); err == nil {
			outcome.Order = order
		}
	}
	return outcome, nil
}

func (s *RegistrationService) reserveCapacity(ctx context.Context, pass *models.Pass) (bool, error) {
	if pass == nil || pass.Capacity <= 0 {
		return false, nil
	}

	key := fmt.Sprintf("pass:reserved:%s", pass.ID)
	raw, err := s.Redis.Eval(ctx, reserveCapacityScript, []string{key}, pass.Capacity).Result()
	if err != nil {
		return false, fmt.Errorf("reserve capacity: %w", err)
	}

	if toInt64(raw) < 0 {
		if s.Monitor != nil {
			s.Monitor.RecordRegistration("capacity_exceeded")
		}
		return false, status.ErrCapacityExceeded
	}

	return true, nil
}

func (s *RegistrationService) releaseCapacity(ctx context.Context, pass *models.Pass, reserved bool) {
	if !reserved {
		return
	}
	key := fmt.Sprintf("pass:reserved:%s", pass.ID)
	if err := s.Redis.Decr(context.WithoutCancel(ctx), key).Err(); err != nil {
		log.Printf("release capacity for pass %s failed: %v", pass.ID, err)
	}
}
