package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/status"
	"gatepass/internal/store"
	"gatepass/models"
	"gatepass/monitoring"
	"gatepass/utils"

	"github.com/redis/go-redis/v9"
)

const (
	issueLockTTL    = time.Minute
	scanCodeBytes   = 20
	ticketNumberFmt = "%s-%04d"
)

// TicketService mints tickets for confirmed registrations. Issue is
// idempotent on the registration: concurrent and repeated calls converge
// on one ticket, backed by a Redis lock in front and the store's unique
// index behind.
type TicketService struct {
	Redis   *redis.Client
	Store   store.Store
	Monitor *monitoring.Monitor

	hmacKey []byte
	prefix  string
	now     func() time.Time
}

func NewTicketService(redisClient *redis.Client, st store.Store, monitor *monitoring.Monitor, scanCodeKey, prefix string) *TicketService {
	return &TicketService{
		Redis:   redisClient,
		Store:   st,
		Monitor: monitor,
		hmacKey: []byte(scanCodeKey),
		prefix:  prefix,
		now:     time.Now,
	}
}

// Issue mints the ticket for a registration and returns it with the raw
// scan code. The raw code is only produced by the call that actually
// creates the ticket; every other call gets the existing ticket and an
// empty code. Registrations that still owe payment get
// status.ErrPaymentUnverified.
func (s *TicketService) Issue(ctx context.Context, registrationID string) (*models.Ticket, string, error) {
	reg, err := s.Store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, "", err
	}

	if err := s.issuable(ctx, reg); err != nil {
		return nil, "", err
	}

	if existing, err := s.Store.GetTicketByRegistration(ctx, registrationID); err == nil {
		return existing, "", nil
	} else if !errors.Is(err, status.ErrTicketNotFound) {
		return nil, "", err
	}

	lockKey := fmt.Sprintf("ticket:issue:%s", registrationID)
	locked, err := s.Redis.SetNX(ctx, lockKey, "1", issueLockTTL).Result()
	if err != nil {
		return nil, "", fmt.Errorf("acquire issue lock: %w", err)
	}
	if !locked {
		// another issuer holds the lock; it either minted already or is
		// about to, so the unique-index fallback below covers us
		if existing, err := s.Store.GetTicketByRegistration(ctx, registrationID); err == nil {
			return existing, "", nil
		}
		return nil, "", fmt.Errorf("ticket issue for registration %s in progress", registrationID)
	}
	defer s.Redis.Del(context.WithoutCancel(ctx), lockKey)

	seq, err := s.Redis.Incr(ctx, fmt.Sprintf("ticket:seq:%s", reg.EventID)).Result()
	if err != nil {
		return nil, "", fmt.Errorf("next ticket number: %w", err)
	}

	rawCode, err := utils.GenerateCode(scanCodeBytes)
	if err != nil {
		return nil, "", fmt.Errorf("generate scan code: %w", err)
	}

	ticket := &models.Ticket{
		RegistrationID: registrationID,
		EventID:        reg.EventID,
		AttendeeID:     reg.AttendeeID,
		PassID:         reg.PassID,
		Number:         fmt.Sprintf(ticketNumberFmt, s.prefix, seq),
		IssuedAt:       s.now().UTC(),
		CodeDigest:     utils.Hmac256([]byte(rawCode), s.hmacKey),
	}

	stored, created, err := s.Store.MintTicket(ctx, ticket)
	if err != nil {
		return nil, "", err
	}
	if !created {
		// lost the race after the fast path; the winner's code stands
		return stored, "", nil
	}

	if err := s.indexTicket(ctx, stored); err != nil {
		return nil, "", err
	}

	if s.Monitor != nil {
		s.Monitor.RecordTicketIssued(stored.EventID)
	}

	return stored, rawCode, nil
}

// issuable checks the payment precondition. Verification is the only
// thing that turns a priced registration into a ticket.
func (s *TicketService) issuable(ctx context.Context, reg *models.Registration) error {
	switch reg.Status {
	case models.RegistrationConfirmed:
		return nil
	case models.RegistrationPendingPayment:
		order, err := s.Store.GetOrderByRegistration(ctx, reg.ID)
		if err != nil {
			return status.ErrPaymentUnverified
		}
		if order.Status != models.OrderVerified {
			return status.ErrPaymentUnverified
		}
		return nil
	default:
		return status.ErrPaymentUnverified
	}
}

// indexTicket writes the Redis side of a fresh mint: the scan-code
// lookup, the zeroed presence hash, and the event total.
func (s *TicketService) indexTicket(ctx context.Context, ticket *models.Ticket) error {
	if err := s.Redis.Set(ctx, fmt.Sprintf("scancode:%s", ticket.CodeDigest), ticket.ID, 0).Err(); err != nil {
		return fmt.Errorf("index scan code: %w", err)
	}

	if err := s.Redis.HSet(ctx, fmt.Sprintf("checkin:state:%s", ticket.ID), "checked_in", "0").Err(); err != nil {
		return fmt.Errorf("init check-in state: %w", err)
	}

	if err := s.Redis.Incr(ctx, fmt.Sprintf("ticket:total:%s", ticket.EventID)).Err(); err != nil {
		return fmt.Errorf("bump event total: %w", err)
	}

	return nil
}
